package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"authcore"
)

type registerBody struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Name            string `json:"name"`
	MobileNumber    string `json:"mobile_number"`
}

type loginBody struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp"`
}

type otpBody struct {
	MobileNumber string `json:"mobile_number"`
}

type refreshBody struct {
	Refresh string `json:"refresh"`
}

type resetRequestBody struct {
	Email string `json:"email"`
}

type resetCompleteBody struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type tokenPairBody struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c)
		return
	}
	_, err := s.engine.Register(c.Request.Context(), authcore.RegisterRequest{
		Email:           body.Email,
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
		Name:            body.Name,
		MobileNumber:    body.MobileNumber,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"response": "User Created!"})
}

func (s *Server) handleLogin(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c)
		return
	}
	pair, err := s.engine.Login(c.Request.Context(), authcore.LoginRequest{
		Email:        body.Email,
		Password:     body.Password,
		MobileNumber: body.MobileNumber,
		OTP:          body.OTP,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenPairBody{Access: pair.Access, Refresh: pair.Refresh})
}

func (s *Server) handleGenerateOTP(c *gin.Context) {
	var body otpBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.GenerateOTP(c.Request.Context(), body.MobileNumber); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": "OTP sent"})
}

func (s *Server) handleRefresh(c *gin.Context) {
	var body refreshBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c)
		return
	}
	pair, err := s.engine.Refresh(c.Request.Context(), body.Refresh)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenPairBody{Access: pair.Access, Refresh: pair.Refresh})
}

func (s *Server) handleResetRequest(c *gin.Context) {
	var body resetRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c)
		return
	}
	if err := s.engine.RequestPasswordReset(c.Request.Context(), body.Email); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": "Reset email sent!"})
}

func (s *Server) handleResetComplete(c *gin.Context) {
	var body resetCompleteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c)
		return
	}
	token := c.Param("token")
	if err := s.engine.CompletePasswordReset(c.Request.Context(), token, body.Password, body.ConfirmPassword); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": "Password changed"})
}

// writeError maps engine errors onto the wire contract. Validation errors
// surface as the raw field map so clients see every violation at once.
func (s *Server) writeError(c *gin.Context, err error) {
	if ve, ok := authcore.AsValidation(err); ok {
		c.JSON(http.StatusBadRequest, ve.Fields)
		return
	}
	switch {
	case errors.Is(err, authcore.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
	case errors.Is(err, authcore.ErrAuthenticationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"auth_failure": "Invalid login credentials"})
	case errors.Is(err, authcore.ErrBadRequest):
		badRequest(c)
	case errors.Is(err, authcore.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "Too many attempts, try again later"})
	case errors.Is(err, authcore.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid or expired token"})
	default:
		s.logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
	}
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid params"})
}
