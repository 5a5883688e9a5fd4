// Structure of the viewing session in Agora.

package entity

// Identity of the user viewing this session, resolved from the access token.
type Session struct {
	Username string
	Token    string
}

// UserRoom returns the personal room (user:<name>) the session listens on.
func (s Session) UserRoom() string {
	if s.Username == "" {
		return ""
	}
	return "user:" + s.Username
}
