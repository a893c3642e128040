package netutil

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"github.com/openmana/accountserver/engine/consts"
	"github.com/openmana/accountserver/engine/omlog"
)

// PacketConnection sends and receives packets upon a network stream connection
type PacketConnection struct {
	conn Connection
}

// NewPacketConnection creates a packet connection based on the network connection
func NewPacketConnection(conn Connection) PacketConnection {
	return PacketConnection{conn: conn}
}

// NewPacket allocates a new packet (usually for sending)
func (pc PacketConnection) NewPacket() *Packet {
	return allocPacket()
}

// SendPacket sends one packet to the remote
func (pc PacketConnection) SendPacket(packet *Packet) error {
	if consts.DEBUG_PACKETS {
		omlog.Debugf("%s SEND PACKET: %v", pc, packet.bytes[:PREPAYLOAD_SIZE+packet.GetPayloadLen()])
	}
	packet.prepareSend()
	err := WriteAll(pc.conn, packet.bytes[:PREPAYLOAD_SIZE+packet.GetPayloadLen()])
	if err != nil {
		return err
	}
	return pc.conn.Flush()
}

// SendPacketRelease sends one packet to the remote and releases it
func (pc PacketConnection) SendPacketRelease(packet *Packet) error {
	err := pc.SendPacket(packet)
	packet.Release()
	return err
}

// RecvPacket receives the next packet
func (pc PacketConnection) RecvPacket() (*Packet, error) {
	packet := allocPacket()

	payloadLenBuf := packet.bytes[:SIZE_FIELD_SIZE]
	err := ReadAll(pc.conn, payloadLenBuf)
	if err != nil {
		packet.Release()
		return nil, err
	}

	payloadLen := PACKET_ENDIAN.Uint32(payloadLenBuf)
	if payloadLen > MAX_PAYLOAD_LENGTH {
		packet.Release()
		return nil, errors.Errorf("message packet too large: %v", payloadLen)
	}

	err = ReadAll(pc.conn, packet.bytes[PREPAYLOAD_SIZE:PREPAYLOAD_SIZE+payloadLen])
	if err != nil {
		packet.Release()
		return nil, err
	}

	packet.SetPayloadLen(payloadLen)
	return packet, nil
}

// Close closes the connection
func (pc PacketConnection) Close() error {
	return pc.conn.Close()
}

// RemoteAddr returns the remote address
func (pc PacketConnection) RemoteAddr() net.Addr {
	return pc.conn.RemoteAddr()
}

// LocalAddr returns the local address
func (pc PacketConnection) LocalAddr() net.Addr {
	return pc.conn.LocalAddr()
}

func (pc PacketConnection) String() string {
	return fmt.Sprintf("[%s >>> %s]", pc.LocalAddr(), pc.RemoteAddr())
}
