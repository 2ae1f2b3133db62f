package validation

// MessageForm is a chat message typed into the compose box. The firmware
// limit is in bytes; the connection enforces that separately.
type MessageForm struct {
	Chat string `schema:"chat" validate:"required"`
	Text string `schema:"text" validate:"required,max=228"`
}
