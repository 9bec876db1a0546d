package handler

import (
	"time"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/repository"
	jwtpkg "github.com/pesio-ai/be-plt-taskhub-identity/pkg/jwt"
)

// userView is the public shape of an identity. The password hash, OTP and
// stored session token never leave the service.
type userView struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	IsVerified  bool       `json:"isVerified"`
	CompanyID   *string    `json:"companyId,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func newUserView(u *repository.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		IsVerified:  u.IsVerified,
		CompanyID:   u.CompanyID,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type companyView struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	IsApproved bool    `json:"isApproved"`
	OwnerID    *string `json:"ownerId,omitempty"`
}

func newCompanyView(c *repository.Company) *companyView {
	if c == nil {
		return nil
	}
	return &companyView{ID: c.ID, Name: c.Name, IsApproved: c.IsApproved, OwnerID: c.OwnerID}
}

// claimsView is the authenticated principal as returned by the profile endpoint
type claimsView struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID string `json:"companyId,omitempty"`
}

func newClaimsView(c *jwtpkg.Claims) claimsView {
	return claimsView{UserID: c.UserID(), Email: c.Email, Role: c.Role, CompanyID: c.CompanyID}
}

// canViewUser reports whether the caller may read the target identity. Admins
// see everyone, managers see members of their own company, anyone sees itself.
func canViewUser(caller *jwtpkg.Claims, target *repository.User) bool {
	if caller.UserID() == target.ID {
		return true
	}
	switch repository.Role(caller.Role) {
	case repository.RoleAdmin:
		return true
	case repository.RoleManager:
		return caller.CompanyID != "" && target.CompanyID != nil && *target.CompanyID == caller.CompanyID
	}
	return false
}
