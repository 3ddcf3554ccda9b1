package utilities

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string. Used as the
// primary key for users and tasks.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewRequestID generates a snowflake ID string for request correlation.
// The node ID comes from SNOWFLAKE_NODE; node 1 is used when the variable
// is absent or malformed.
func NewRequestID() string {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			nodeID = n
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		// snowflake rejects out-of-range nodes; KSUID still correlates
		return NewKSUID()
	}
	return node.Generate().String()
}
