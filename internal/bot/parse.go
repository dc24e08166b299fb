package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseChatIDArg extracts an optional chat ID from command arguments.
// The boolean is false when no argument was given.
func ParseChatIDArg(args string) (int64, bool, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, false, nil
	}
	if len(fields) > 1 {
		return 0, false, fmt.Errorf("usage: /%s [chat_id]", cmdSetChannel)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id == 0 {
		return 0, false, fmt.Errorf("invalid chat ID %q", fields[0])
	}
	return id, true, nil
}
