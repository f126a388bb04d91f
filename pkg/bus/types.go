package bus

// InboundMessage is one player utterance arriving from a channel. SessionKey
// identifies the table conversation the utterance belongs to.
type InboundMessage struct {
	Channel    string
	SenderID   string
	ChatID     string
	Content    string
	SessionKey string
	Metadata   map[string]string
}

// OutboundMessage is one companion reply bound for a channel.
type OutboundMessage struct {
	Channel string
	ChatID  string
	Content string
}
