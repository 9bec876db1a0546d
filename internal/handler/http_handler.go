package handler

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/middleware"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/response"
	"github.com/pesio-ai/be-plt-taskhub-identity/internal/service"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	registration *service.RegistrationService
	auth         *service.AuthService
	credentials  *service.CredentialService
	users        *service.UserService
	log          *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(
	registration *service.RegistrationService,
	auth *service.AuthService,
	credentials *service.CredentialService,
	users *service.UserService,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		registration: registration,
		auth:         auth,
		credentials:  credentials,
		users:        users,
		log:          log,
	}
}

type registerBody struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"companyName"`
	Company     *struct {
		CompanyName string `json:"companyName"`
	} `json:"company"`
}

type registerInput struct {
	Name        string `json:"name" validate:"required,min=2"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=72,password"`
	CompanyName string `json:"companyName" validate:"required,min=2"`
}

// Register handles POST /user/register
func (h *HTTPHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := decodeJSON(w, r, &body); err != nil {
		response.Error(w, h.log, err)
		return
	}

	in := registerInput{
		Name:        body.Name,
		Email:       body.Email,
		Password:    body.Password,
		CompanyName: body.CompanyName,
	}
	if in.CompanyName == "" && body.Company != nil {
		in.CompanyName = body.Company.CompanyName
	}
	if err := validateStruct(&in); err != nil {
		response.Error(w, h.log, err)
		return
	}

	res, err := h.registration.Register(r.Context(), &service.RegisterRequest{
		Email:       in.Email,
		Name:        in.Name,
		Password:    in.Password,
		CompanyName: in.CompanyName,
		Meta:        requestMeta(r),
	})
	if err != nil {
		response.Error(w, h.log, err)
		return
	}

	data := map[string]string{"userId": res.User.ID, "companyId": res.Company.ID}
	if res.Created {
		response.Success(w, http.StatusCreated, "Otp sent successfully", data)
		return
	}
	response.Success(w, http.StatusOK, "Otp Sent Successfully", data)
}

type verifyOTPBody struct {
	Email string  `json:"email" validate:"required,email"`
	OTP   flexInt `json:"otp" validate:"required"`
}

// VerifyOTP handles POST /user/verify-otp
func (h *HTTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if err := decodeAndValidate(w, r, &body); err != nil {
		response.Error(w, h.log, err)
		return
	}

	user, err := h.registration.VerifyOTP(r.Context(), &service.VerifyOTPRequest{
		Email: body.Email,
		OTP:   int(body.OTP),
		Meta:  requestMeta(r),
	})
	if err != nil {
		response.Error(w, h.log, err)
		return
	}

	response.Success(w, http.StatusOK, "Email verified successfully. Welcome email sent!", newUserView(user))
}

type loginBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Login handles POST /auth/login
func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := decodeAndValidate(w, r, &body); err != nil {
		response.Error(w, h.log, err)
		return
	}

	resp, err := h.auth.Login(r.Context(), &service.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
		Meta:     requestMeta(r),
	})
	if err != nil {
		response.Error(w, h.log, err)
		return
	}

	response.Success(w, http.StatusOK, "Login successful", map[string]any{
		"access_token": resp.AccessToken,
		"expires_in":   resp.ExpiresIn,
		"user":         newUserView(resp.User),
	})
}

type passwordBody struct {
	OldPassword     string  `json:"oldPassword" validate:"required,min=6,max=72,password"`
	NewPassword     string  `json:"newPassword" validate:"required,min=6,max=72,password"`
	ConfirmPassword *string `json:"confirmPassword" validate:"omitempty,min=6,max=72,password"`
}

// UpdatePassword handles PATCH /user/update-password. The confirmed variant is
// used whenever confirmPassword is present in the body.
func (h *HTTPHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	h.changePassword(w, r, true)
}

// ChangePassword handles PATCH /user/change-password
func (h *HTTPHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	h.changePassword(w, r, false)
}

func (h *HTTPHandler) changePassword(w http.ResponseWriter, r *http.Request, allowConfirm bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, h.log, errors.Unauthorized("Invalid or expired token"))
		return
	}

	var body passwordBody
	if err := decodeAndValidate(w, r, &body); err != nil {
		response.Error(w, h.log, err)
		return
	}

	req := &service.ChangePasswordRequest{
		UserID:      claims.UserID(),
		OldPassword: body.OldPassword,
		NewPassword: body.NewPassword,
		Meta:        requestMeta(r),
	}

	var err error
	if allowConfirm && body.ConfirmPassword != nil {
		err = h.credentials.ChangePasswordConfirmed(r.Context(), req, *body.ConfirmPassword)
	} else {
		err = h.credentials.ChangePassword(r.Context(), req)
	}
	if err != nil {
		response.Error(w, h.log, err)
		return
	}

	response.Success(w, http.StatusOK, "Password updated successfully", nil)
}

// Profile handles GET /auth/profile
func (h *HTTPHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, h.log, errors.Unauthorized("Invalid or expired token"))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"message": "Token is valid",
		"user":    newClaimsView(claims),
	})
}

// GetUser handles GET /admin/users/{id}
func (h *HTTPHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, h.log, errors.Unauthorized("Invalid or expired token"))
		return
	}

	details, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, h.log, err)
		return
	}
	if !canViewUser(claims, details.User) {
		response.Error(w, h.log, errors.Forbidden("You do not have permission to access this resource"))
		return
	}

	response.Success(w, http.StatusOK, "User fetched successfully", map[string]any{
		"user":    newUserView(details.User),
		"company": newCompanyView(details.Company),
	})
}

// Health handles GET /healthz
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{"ok": true})
}

func requestMeta(r *http.Request) service.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return service.RequestMeta{IPAddress: ip, UserAgent: r.UserAgent()}
}
