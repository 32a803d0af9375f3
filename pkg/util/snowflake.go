package util

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	snowNode *snowflake.Node
	snowMu   sync.Mutex
)

// InitSnowflake 初始化雪花节点，nodeID 范围 0-1023
func InitSnowflake(nodeID int64) error {
	snowMu.Lock()
	defer snowMu.Unlock()
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	snowNode = node
	return nil
}

// GenIDString 生成字符串形式的雪花 id（未初始化时使用节点 0）
func GenIDString() string {
	snowMu.Lock()
	if snowNode == nil {
		snowNode, _ = snowflake.NewNode(0)
	}
	node := snowNode
	snowMu.Unlock()
	return node.Generate().String()
}
