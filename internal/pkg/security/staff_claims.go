package security

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// StaffClaims 客服后台登录服务签发的 Token 载荷
type StaffClaims struct {
	StaffID string   `json:"staff_id"`
	Roles   []string `json:"roles"`
	jwt.RegisteredClaims
}

func (c *StaffClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}
