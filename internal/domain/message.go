package domain

// ThreadMessage is one rendered message in a conversation thread, as seen by
// the continuity tracker. Timestamp is the platform's message timestamp in
// its native string form (fixed-width decimal, so lexicographic order matches
// chronological order) and is the key the token store is indexed by.
type ThreadMessage struct {
	UserID    string
	Timestamp string
	Text      string
}

// BotResponseRecord links a posted bot message to the continuation token
// that was active when it was sent. This is the authoritative structured
// form; messages predating the store carry the same fact as an inline text
// marker instead.
type BotResponseRecord struct {
	TenantID  string
	ChannelID string
	MessageTS string
	Token     string
}

// FileMeta describes a downloadable file on the source platform.
type FileMeta struct {
	Name     string
	URL      string
	Mimetype string
	Size     int64
}

// FileAttachment is a downloaded, encoded file ready to be sent to the
// reasoning agent.
type FileAttachment struct {
	Name     string `json:"name"`
	Mimetype string `json:"mimetype"`
	Content  string `json:"content"` // base64
}
