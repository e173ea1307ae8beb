package orchestrator

import "regexp"

// Group replies open with the speaker's name in bold: "**Emma**: text".
var speakerMarker = regexp.MustCompile(`^\*\*([^*]+)\*\*:\s*`)

// attribute splits a reply into its speaker and the text to be spoken. Replies
// without a marker have no speaker and are spoken whole.
func attribute(reply string) (speaker, text string) {
	m := speakerMarker.FindStringSubmatchIndex(reply)
	if m == nil {
		return "", reply
	}
	return reply[m[2]:m[3]], reply[m[1]:]
}
