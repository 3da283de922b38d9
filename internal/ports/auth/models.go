package auth

// Role define los roles de cuenta que maneja el sistema.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleDoctor:
		return RoleDoctor, true
	default:
		return "", false
	}
}

// Claims representa la información extraída del token.
// El rol viaja en el contexto del request; nada de estado global de sesión.
type Claims struct {
	UserID string
	Email  string
	Role   Role
}

func (c Claims) IsAdmin() bool  { return c.Role == RoleAdmin }
func (c Claims) IsDoctor() bool { return c.Role == RoleDoctor }
