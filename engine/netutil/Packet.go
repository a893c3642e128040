package netutil

import (
	"encoding/binary"
	"sync"

	"github.com/openmana/accountserver/engine/omlog"
)

const (
	// MAX_PACKET_SIZE is the max size of a packet including the size field
	MAX_PACKET_SIZE = 64 * 1024
	// SIZE_FIELD_SIZE is the size of the packet size field
	SIZE_FIELD_SIZE = 4
	// PREPAYLOAD_SIZE is the size of the packet bytes before the payload
	PREPAYLOAD_SIZE = SIZE_FIELD_SIZE
	// MAX_PAYLOAD_LENGTH is the max payload length of a packet
	MAX_PAYLOAD_LENGTH = MAX_PACKET_SIZE - PREPAYLOAD_SIZE
)

var (
	// PACKET_ENDIAN is the byte order of packet fields
	PACKET_ENDIAN = binary.LittleEndian

	packetPool = sync.Pool{
		New: func() interface{} {
			return &Packet{}
		},
	}
)

// Packet is one typed, length-delimited protocol message
type Packet struct {
	payloadLen uint32
	readCursor uint32
	refcount   int64
	bytes      [MAX_PACKET_SIZE]byte
}

func allocPacket() *Packet {
	pkt := packetPool.Get().(*Packet)
	if pkt.refcount != 0 {
		omlog.Panicf("packet must be released when allocated from pool, but refcount=%d", pkt.refcount)
	}
	pkt.refcount = 1
	return pkt
}

// NewPacket allocates a new packet from the pool
func NewPacket() *Packet {
	return allocPacket()
}

// Payload returns the filled payload bytes
func (p *Packet) Payload() []byte {
	return p.bytes[PREPAYLOAD_SIZE : PREPAYLOAD_SIZE+p.payloadLen]
}

// GetPayloadLen returns the payload length
func (p *Packet) GetPayloadLen() uint32 {
	return p.payloadLen
}

// SetPayloadLen sets the payload length (used when receiving)
func (p *Packet) SetPayloadLen(plen uint32) {
	if plen > MAX_PAYLOAD_LENGTH {
		omlog.Panicf("payload length too long: %d", plen)
	}
	p.payloadLen = plen
}

// UnreadPayloadLen returns the number of unread payload bytes
func (p *Packet) UnreadPayloadLen() uint32 {
	return p.payloadLen - p.readCursor
}

// HasUnreadPayload returns if the packet has unread payload
func (p *Packet) HasUnreadPayload() bool {
	return p.readCursor < p.payloadLen
}

// ClearPayload clears the payload so the packet can be reused
func (p *Packet) ClearPayload() {
	p.payloadLen = 0
	p.readCursor = 0
}

// Release puts the packet back to the pool
func (p *Packet) Release() {
	p.refcount--
	if p.refcount < 0 {
		omlog.Panicf("packet releaesd too many times, refcount=%d", p.refcount)
	}
	if p.refcount == 0 {
		p.payloadLen = 0
		p.readCursor = 0
		packetPool.Put(p)
	}
}

// AddRefCount adds the ref count of the packet
func (p *Packet) AddRefCount(add int64) {
	p.refcount += add
}

func (p *Packet) assureAppendSpace(size uint32) uint32 {
	payloadEnd := PREPAYLOAD_SIZE + p.payloadLen
	if p.payloadLen+size > MAX_PAYLOAD_LENGTH {
		omlog.Panicf("packet payload overflow: %d + %d > %d", p.payloadLen, size, MAX_PAYLOAD_LENGTH)
	}
	p.payloadLen += size
	return payloadEnd
}

func (p *Packet) assureReadSpace(size uint32) uint32 {
	pos := p.readCursor + PREPAYLOAD_SIZE
	if p.readCursor+size > p.payloadLen {
		omlog.Panicf("packet payload underflow: reading %d bytes at %d of %d", size, p.readCursor, p.payloadLen)
	}
	p.readCursor += size
	return pos
}

// AppendByte appends one byte to the payload
func (p *Packet) AppendByte(b byte) {
	pos := p.assureAppendSpace(1)
	p.bytes[pos] = b
}

// ReadByte reads one byte from the payload
func (p *Packet) ReadByte() byte {
	pos := p.assureReadSpace(1)
	return p.bytes[pos]
}

// AppendUint16 appends one uint16 to the payload
func (p *Packet) AppendUint16(v uint16) {
	pos := p.assureAppendSpace(2)
	PACKET_ENDIAN.PutUint16(p.bytes[pos:pos+2], v)
}

// ReadUint16 reads one uint16 from the payload
func (p *Packet) ReadUint16() uint16 {
	pos := p.assureReadSpace(2)
	return PACKET_ENDIAN.Uint16(p.bytes[pos : pos+2])
}

// AppendUint32 appends one uint32 to the payload
func (p *Packet) AppendUint32(v uint32) {
	pos := p.assureAppendSpace(4)
	PACKET_ENDIAN.PutUint32(p.bytes[pos:pos+4], v)
}

// ReadUint32 reads one uint32 from the payload
func (p *Packet) ReadUint32() uint32 {
	pos := p.assureReadSpace(4)
	return PACKET_ENDIAN.Uint32(p.bytes[pos : pos+4])
}

// AppendInt32 appends one int32 to the payload
func (p *Packet) AppendInt32(v int32) {
	p.AppendUint32(uint32(v))
}

// ReadInt32 reads one int32 from the payload
func (p *Packet) ReadInt32() int32 {
	return int32(p.ReadUint32())
}

// AppendBytes appends raw bytes to the payload
func (p *Packet) AppendBytes(v []byte) {
	size := uint32(len(v))
	pos := p.assureAppendSpace(size)
	copy(p.bytes[pos:pos+size], v)
}

// ReadBytes reads raw bytes from the payload
func (p *Packet) ReadBytes(size uint32) []byte {
	pos := p.assureReadSpace(size)
	return p.bytes[pos : pos+size]
}

// AppendFixedStr appends a fixed-length string to the payload
func (p *Packet) AppendFixedStr(s string, size uint32) {
	if uint32(len(s)) != size {
		omlog.Panicf("AppendFixedStr: string of len %d, want %d", len(s), size)
	}
	p.AppendBytes([]byte(s))
}

// ReadFixedStr reads a fixed-length string from the payload
func (p *Packet) ReadFixedStr(size uint32) string {
	return string(p.ReadBytes(size))
}

// AppendVarStr appends a length-prefixed string to the payload
func (p *Packet) AppendVarStr(s string) {
	p.AppendVarBytes([]byte(s))
}

// ReadVarStr reads a length-prefixed string from the payload
func (p *Packet) ReadVarStr() string {
	return string(p.ReadVarBytes())
}

// AppendVarBytes appends length-prefixed bytes to the payload
func (p *Packet) AppendVarBytes(v []byte) {
	p.AppendUint32(uint32(len(v)))
	p.AppendBytes(v)
}

// ReadVarBytes reads length-prefixed bytes from the payload
func (p *Packet) ReadVarBytes() []byte {
	size := p.ReadUint32()
	return p.ReadBytes(size)
}

func (p *Packet) prepareSend() {
	PACKET_ENDIAN.PutUint32(p.bytes[:SIZE_FIELD_SIZE], p.payloadLen)
}
