package security

import (
	"Realty/internal/model"
	"Realty/internal/pkg/consts"
	"time"

	"github.com/google/uuid"
)

// Session 连接/请求建立时一次性签发的身份凭据，之后只读
type Session struct {
	id       string
	role     string
	subject  string
	issuedAt time.Time
}

// NewVisitorSession 匿名访客
func NewVisitorSession() Session {
	return Session{id: uuid.NewString(), role: model.SenderUser, issuedAt: time.Now()}
}

// NewStaffSession 由校验通过的 Claims 构造；只有带 ADMIN 角色的才是客服
func NewStaffSession(claims *StaffClaims) Session {
	role := model.SenderUser
	if claims.HasRole(consts.RoleAdmin) {
		role = model.SenderAdmin
	}
	return Session{id: uuid.NewString(), role: role, subject: claims.StaffID, issuedAt: time.Now()}
}

// SessionFromToken 空 Token 视为访客，非法 Token 返回错误
func (m *TokenManager) SessionFromToken(token string) (Session, error) {
	if token == "" {
		return NewVisitorSession(), nil
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		return Session{}, err
	}
	return NewStaffSession(claims), nil
}

func (s Session) ID() string { return s.id }
func (s Session) Role() string { return s.role }
func (s Session) Subject() string { return s.subject }
func (s Session) IssuedAt() time.Time { return s.issuedAt }
func (s Session) IsAdmin() bool { return s.role == model.SenderAdmin }
func (s Session) Valid() bool { return model.IsValidSender(s.role) }

// CanClear 访客只能清自己的未读，客服两侧都可以
func (s Session) CanClear(side string) bool {
	return s.IsAdmin() || side == s.role
}
