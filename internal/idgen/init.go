package idgen

import (
	"log"
	"os"
	"strconv"
)

const nodeEnv = "SNOWFLAKE_NODE_ID"

// InitFromEnv 读取 SNOWFLAKE_NODE_ID，未设置时使用 fallback
func InitFromEnv(fallback int64) {
	nodeID := fallback
	if s := os.Getenv(nodeEnv); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			log.Fatalf("[IDGen] %s=%q not a number", nodeEnv, s)
		}
		nodeID = v
	}
	if err := InitNode(nodeID); err != nil {
		log.Fatalf("[IDGen] %v", err)
	}
	log.Printf("[IDGen] node %d", nodeID)
}
