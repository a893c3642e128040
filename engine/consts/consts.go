package consts

import "time"

// Tunable Options
const (
	// For Underlying Networking
	// GAMESERVER_PROXY_WRITE_BUFFER_SIZE is game server proxies' write buffer size
	GAMESERVER_PROXY_WRITE_BUFFER_SIZE = 64 * 1024
	// GAMESERVER_PROXY_READ_BUFFER_SIZE is game server proxies' read buffer size
	GAMESERVER_PROXY_READ_BUFFER_SIZE = 64 * 1024
	// GAMESERVER_PROXY_SET_TCP_NO_DELAY = true sets game server proxies to TcpNoDelay
	GAMESERVER_PROXY_SET_TCP_NO_DELAY = true

	// SERVICE_TICK_INTERVAL is the tick interval for timers in the account server service
	SERVICE_TICK_INTERVAL = time.Millisecond * 100
)

// Debug Options
const (
	// DEBUG_PACKETS prints packet send/recv debug logs
	DEBUG_PACKETS = false
)
