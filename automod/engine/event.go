package engine

// ChatMessage is one inbound chat event as handed to the engine by the
// consumer. Echo marks messages the bot itself sent.
type ChatMessage struct {
	ID       string
	Channel  string
	UserID   string
	Username string
	Text     string

	IsSubscriber  bool
	IsVIP         bool
	IsMod         bool
	IsBroadcaster bool
	Echo          bool
}
