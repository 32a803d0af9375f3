package manager

import (
	"sync"

	"github.com/sudo-enjoy/matching-app-be/pkg/metrics"
)

// ConnectionManager 进程内在线连接表。
// 每个用户最多一个当前连接：新连接注册时返回被替换的旧连接，由调用方关闭。
// rooms 只记录成员关系，连接注销时一并移除。
type ConnectionManager struct {
	mu       sync.RWMutex
	byUser   map[string]*Client
	rooms    map[string]map[*Client]struct{}
	joined   map[*Client]map[string]struct{}
	shutdown bool
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byUser: make(map[string]*Client),
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Register 注册连接，返回被替换的旧连接（如果存在）。
// 已 Shutdown 时返回 ok=false，调用方应直接关闭新连接。
func (m *ConnectionManager) Register(client *Client) (replaced *Client, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return nil, false
	}
	if old, exists := m.byUser[client.UserID()]; exists && old != client {
		replaced = old
		m.leaveAllLocked(old)
	}
	m.byUser[client.UserID()] = client
	metrics.OnlineConnections.Set(float64(len(m.byUser)))
	return replaced, true
}

// Unregister 只有当前连接与入参一致时才删除，返回是否删除。
// 被替换的旧连接断开时返回 false，不能据此把用户置为离线。
func (m *ConnectionManager) Unregister(client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaveAllLocked(client)
	current, ok := m.byUser[client.UserID()]
	if !ok || current != client {
		return false
	}
	delete(m.byUser, client.UserID())
	metrics.OnlineConnections.Set(float64(len(m.byUser)))
	return true
}

// Lookup 用户当前连接
func (m *ConnectionManager) Lookup(userID string) *Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byUser[userID]
}

// SendToUser 发给用户当前连接。
// online=false 表示用户不在线；online=true 而 sent=false 表示写队列已满或连接正在关闭。
func (m *ConnectionManager) SendToUser(userID string, msg []byte) (sent, online bool) {
	client := m.Lookup(userID)
	if client == nil {
		return false, false
	}
	return client.Enqueue(msg), true
}

// Broadcast 发给所有连接，excludeUserID 非空时跳过该用户，返回成功入队数
func (m *ConnectionManager) Broadcast(msg []byte, excludeUserID string) int {
	m.mu.RLock()
	clients := make([]*Client, 0, len(m.byUser))
	for uid, client := range m.byUser {
		if uid == excludeUserID {
			continue
		}
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	return enqueueAll(clients, msg)
}

// JoinRoom 加入房间，重复加入无副作用
func (m *ConnectionManager) JoinRoom(roomID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown || m.byUser[client.UserID()] != client {
		return
	}
	members, ok := m.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		m.rooms[roomID] = members
	}
	members[client] = struct{}{}

	rooms, ok := m.joined[client]
	if !ok {
		rooms = make(map[string]struct{})
		m.joined[client] = rooms
	}
	rooms[roomID] = struct{}{}
}

// LeaveRoom 离开房间
func (m *ConnectionManager) LeaveRoom(roomID string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(roomID, client)
}

// SendToRoom 发给房间内除 sender 外的成员，返回成功入队数
func (m *ConnectionManager) SendToRoom(roomID string, msg []byte, sender *Client) int {
	m.mu.RLock()
	members := m.rooms[roomID]
	clients := make([]*Client, 0, len(members))
	for client := range members {
		if client != sender {
			clients = append(clients, client)
		}
	}
	m.mu.RUnlock()

	return enqueueAll(clients, msg)
}

// RoomSize 房间成员数
func (m *ConnectionManager) RoomSize(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[roomID])
}

// Count 当前在线用户数
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// Shutdown 关闭全部连接并拒绝后续注册
func (m *ConnectionManager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true

	clients := make([]*Client, 0, len(m.byUser))
	for _, client := range m.byUser {
		clients = append(clients, client)
	}
	m.byUser = make(map[string]*Client)
	m.rooms = make(map[string]map[*Client]struct{})
	m.joined = make(map[*Client]map[string]struct{})
	metrics.OnlineConnections.Set(0)
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}

func (m *ConnectionManager) leaveLocked(roomID string, client *Client) {
	if members, ok := m.rooms[roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	if rooms, ok := m.joined[client]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(m.joined, client)
		}
	}
}

func (m *ConnectionManager) leaveAllLocked(client *Client) {
	for roomID := range m.joined[client] {
		m.leaveLocked(roomID, client)
	}
}

func enqueueAll(clients []*Client, msg []byte) int {
	sent := 0
	for _, client := range clients {
		if client.Enqueue(msg) {
			sent++
		}
	}
	return sent
}
