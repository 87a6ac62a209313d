package integration_test

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"servicebook_client/internal/api"

	"github.com/gin-gonic/gin"
)

// bookingBackend is an in-memory stand-in for the booking site's API. It
// speaks the same routes and error shapes the production backend does,
// including Django-style per-field error arrays.
type bookingBackend struct {
	router *gin.Engine

	mu           sync.Mutex
	users        map[string]*backendAccount // keyed by email
	access       map[string]string          // access token -> email
	refresh      map[string]string          // refresh token -> email
	googleCodes  map[string]string          // authorization artifact -> email
	resetTokens  map[string]string          // reset token -> email
	tokenCounter int

	// issueTokensOnRegister switches the register response between the two
	// backend policies: tokens inline, or account-only.
	issueTokensOnRegister bool
	lastResetToken        string

	categories       []api.ServiceCategory
	categoryPageSize int
}

type backendAccount struct {
	id        int64
	password  string
	firstName string
	lastName  string
	phone     string
}

func newBookingBackend() *bookingBackend {
	gin.SetMode(gin.TestMode)
	b := &bookingBackend{
		router:                gin.New(),
		users:                 make(map[string]*backendAccount),
		access:                make(map[string]string),
		refresh:               make(map[string]string),
		googleCodes:           make(map[string]string),
		resetTokens:           make(map[string]string),
		issueTokensOnRegister: true,
		categoryPageSize:      10,
	}

	r := b.router
	r.POST("/api/login/", b.handleLogin)
	r.POST("/api/register/", b.handleRegister)
	r.POST("/api/google-auth/", b.handleGoogleAuth)
	r.POST("/api/token/refresh/", b.handleRefresh)
	r.POST("/api/logout/", b.handleLogout)
	r.GET("/api/profile/", b.handleGetProfile)
	r.PATCH("/api/profile/", b.handlePatchProfile)
	r.POST("/api/forgot-password/", b.handleForgotPassword)
	r.POST("/api/reset-password/", b.handleResetPassword)
	r.GET("/api/check-email/", b.handleCheckEmail)
	r.GET("/api/check-phone/", b.handleCheckPhone)
	r.GET("/api/public/service-categories/", b.handleServiceCategories)
	return b
}

func (b *bookingBackend) issueTokens(email string) (access, refresh string) {
	b.tokenCounter++
	access = fmt.Sprintf("acc-%d", b.tokenCounter)
	refresh = fmt.Sprintf("ref-%d", b.tokenCounter)
	b.access[access] = email
	b.refresh[refresh] = email
	return access, refresh
}

func (b *bookingBackend) userPayload(email string) *api.User {
	acct := b.users[email]
	return &api.User{
		ID:          acct.id,
		Email:       email,
		FirstName:   acct.firstName,
		LastName:    acct.lastName,
		PhoneNumber: acct.phone,
	}
}

// addAccount seeds a user directly, bypassing the register endpoint.
func (b *bookingBackend) addAccount(email, password, firstName, lastName, phone string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[email] = &backendAccount{
		id:        int64(len(b.users) + 1),
		password:  password,
		firstName: firstName,
		lastName:  lastName,
		phone:     phone,
	}
}

// registerGoogleCode maps an authorization artifact to the Google account it
// will sign in.
func (b *bookingBackend) registerGoogleCode(code, email, firstName, lastName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.googleCodes[code] = email
	if _, ok := b.users[email]; !ok {
		b.users[email] = &backendAccount{
			id:        int64(len(b.users) + 1),
			firstName: firstName,
			lastName:  lastName,
		}
	}
}

// revokeAccessTokens invalidates every outstanding access token, keeping
// refresh tokens alive. Simulates short-lived access tokens expiring.
func (b *bookingBackend) revokeAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]string)
}

// revokeRefreshTokens invalidates every outstanding refresh token.
func (b *bookingBackend) revokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]string)
}

func (b *bookingBackend) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.users[req.Email]
	if !ok || acct.password == "" || acct.password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No active account found with the given credentials"})
		return
	}
	access, refresh := b.issueTokens(req.Email)
	c.JSON(http.StatusOK, gin.H{"access": access, "refresh": refresh, "user": b.userPayload(req.Email)})
}

func (b *bookingBackend) handleRegister(c *gin.Context) {
	var req api.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[req.Email]; exists {
		c.JSON(http.StatusBadRequest, gin.H{"email": []string{"A user with this email already exists."}})
		return
	}
	for _, acct := range b.users {
		if req.PhoneNumber != "" && acct.phone == req.PhoneNumber {
			c.JSON(http.StatusBadRequest, gin.H{"phone_number": []string{"This phone number is already in use."}})
			return
		}
	}

	b.users[req.Email] = &backendAccount{
		id:        int64(len(b.users) + 1),
		password:  req.Password,
		firstName: req.FirstName,
		lastName:  req.LastName,
		phone:     req.PhoneNumber,
	}

	if !b.issueTokensOnRegister {
		c.JSON(http.StatusCreated, gin.H{"user": b.userPayload(req.Email)})
		return
	}
	access, refresh := b.issueTokens(req.Email)
	c.JSON(http.StatusCreated, gin.H{"access": access, "refresh": refresh, "user": b.userPayload(req.Email)})
}

func (b *bookingBackend) handleGoogleAuth(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.googleCodes[req.Token]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Invalid Google token."}})
		return
	}
	access, refresh := b.issueTokens(email)
	c.JSON(http.StatusOK, gin.H{
		"access":      access,
		"refresh":     refresh,
		"user":        b.userPayload(email),
		"needs_phone": b.users[email].phone == "",
	})
}

func (b *bookingBackend) handleRefresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.refresh[req.Refresh]
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	b.tokenCounter++
	access := fmt.Sprintf("acc-%d", b.tokenCounter)
	b.access[access] = email
	c.JSON(http.StatusOK, gin.H{"access": access})
}

func (b *bookingBackend) handleLogout(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = c.ShouldBindJSON(&req)

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, req.Refresh)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out."})
}

func (b *bookingBackend) authenticate(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return "", false
	}
	email, ok := b.access[token]
	return email, ok
}

func (b *bookingBackend) handleGetProfile(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Given token not valid for any token type"})
		return
	}
	c.JSON(http.StatusOK, b.userPayload(email))
}

func (b *bookingBackend) handlePatchProfile(c *gin.Context) {
	var update api.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.authenticate(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Given token not valid for any token type"})
		return
	}

	acct := b.users[email]
	if update.PhoneNumber != nil {
		for otherEmail, other := range b.users {
			if otherEmail != email && other.phone == *update.PhoneNumber {
				c.JSON(http.StatusBadRequest, gin.H{"phone_number": []string{"This phone number is already in use."}})
				return
			}
		}
		acct.phone = *update.PhoneNumber
	}
	if update.FirstName != nil {
		acct.firstName = *update.FirstName
	}
	if update.LastName != nil {
		acct.lastName = *update.LastName
	}
	c.JSON(http.StatusOK, b.userPayload(email))
}

func (b *bookingBackend) handleForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.users[req.Email]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No account found for this email."})
		return
	}
	b.tokenCounter++
	token := fmt.Sprintf("reset-%d", b.tokenCounter)
	b.resetTokens[token] = req.Email
	b.lastResetToken = token
	c.JSON(http.StatusOK, gin.H{"message": "Password reset email sent.", "success": true})
}

func (b *bookingBackend) handleResetPassword(c *gin.Context) {
	var req struct {
		Token           string `json:"token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Malformed request."})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.resetTokens[req.Token]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid or expired reset token."})
		return
	}
	delete(b.resetTokens, req.Token)
	b.users[email].password = req.NewPassword
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset.", "success": true})
}

func (b *bookingBackend) handleCheckEmail(c *gin.Context) {
	email := c.Query("email")
	b.mu.Lock()
	defer b.mu.Unlock()
	_, exists := b.users[email]
	c.JSON(http.StatusOK, gin.H{"exists": exists, "valid": strings.Contains(email, "@")})
}

func (b *bookingBackend) handleServiceCategories(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}

	start := (page - 1) * b.categoryPageSize
	end := start + b.categoryPageSize
	if start > len(b.categories) {
		start = len(b.categories)
	}
	if end > len(b.categories) {
		end = len(b.categories)
	}

	var next *string
	if end < len(b.categories) {
		u := fmt.Sprintf("http://%s/api/public/service-categories/?page=%d", c.Request.Host, page+1)
		next = &u
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(b.categories),
		"next":     next,
		"previous": nil,
		"results":  b.categories[start:end],
	})
}

func (b *bookingBackend) handleCheckPhone(c *gin.Context) {
	phone := c.Query("phone")
	b.mu.Lock()
	defer b.mu.Unlock()
	exists := false
	for _, acct := range b.users {
		if acct.phone != "" && acct.phone == phone {
			exists = true
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists, "valid": len(phone) >= 8})
}
