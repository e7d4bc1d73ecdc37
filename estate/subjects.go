// Package estate defines the domain types, worker message contracts, NATS
// subjects, and worker-endpoint directory for the estate search system.
//
// Worker exchanges run over two subject families on the ESTATE stream:
// requests on "estate.request.<kind>" and replies on "estate.reply.<kind>".
// User traffic stays on the USER stream conventions: inbound turns on
// "user.message.<channel_type>.<channel_id>" and outbound responses on
// "user.response.<channel_type>.<channel_id>".
package estate

import "fmt"

const (
	// RequestSubjectPrefix is the subject family workers consume from.
	RequestSubjectPrefix = "estate.request"
	// ReplySubjectPrefix is the subject family the coordinator consumes from.
	ReplySubjectPrefix = "estate.reply"

	// UserMessageWildcard matches every inbound user turn.
	UserMessageWildcard = "user.message.>"
	// ReplyWildcard matches every worker reply.
	ReplyWildcard = "estate.reply.>"
)

// RequestSubject returns the subject requests of this kind are published to.
func RequestSubject(k Kind) string {
	return fmt.Sprintf("%s.%s", RequestSubjectPrefix, k)
}

// ReplySubject returns the subject replies of this kind are published to.
func ReplySubject(k Kind) string {
	return fmt.Sprintf("%s.%s", ReplySubjectPrefix, k)
}

// UserResponseSubject returns the subject responses to one user channel are
// published to.
func UserResponseSubject(channelType, channelID string) string {
	return fmt.Sprintf("user.response.%s.%s", channelType, channelID)
}

// KindFromReplySubject extracts the worker kind from a reply subject.
// Returns an error for subjects outside the reply family or with an
// unknown kind token.
func KindFromReplySubject(subject string) (Kind, error) {
	prefix := ReplySubjectPrefix + "."
	if len(subject) <= len(prefix) || subject[:len(prefix)] != prefix {
		return "", fmt.Errorf("subject %q is not a reply subject", subject)
	}
	k := Kind(subject[len(prefix):])
	if !k.Valid() {
		return "", fmt.Errorf("unknown worker kind %q in subject %q", k, subject)
	}
	return k, nil
}
