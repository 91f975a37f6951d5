package capture

import (
	"context"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
)

const (
	DefaultMaxBufferedPagesTotal         = 100000
	DefaultMaxBufferedPagesPerConnection = 4000
)

type Options struct {
	// When set, the side listening on this port is the server. Otherwise the
	// side that sent the first SYN is the client, or failing that, the first
	// side seen.
	ServerPort int

	// A gopacket page is 1900 bytes.
	MaxBufferedPagesTotal         int
	MaxBufferedPagesPerConnection int
}

func NewOptions() Options {
	return Options{
		MaxBufferedPagesTotal:         DefaultMaxBufferedPagesTotal,
		MaxBufferedPagesPerConnection: DefaultMaxBufferedPagesPerConnection,
	}
}

type Option func(*Options)

func WithServerPort(port int) Option {
	return func(o *Options) {
		o.ServerPort = port
	}
}

func WithBufferedPages(total, perConnection int) Option {
	return func(o *Options) {
		o.MaxBufferedPagesTotal = total
		o.MaxBufferedPagesPerConnection = perConnection
	}
}

// Assemble reassembles the TCP streams in packets into exchanges, in the
// order their connections first appeared. Non-TCP packets are ignored.
func Assemble(ctx context.Context, packets <-chan gopacket.Packet, opt ...Option) ([]*Exchange, error) {
	opts := NewOptions()
	for _, o := range opt {
		o(&opts)
	}

	factory := &streamFactory{serverPort: opts.ServerPort}
	assembler := reassembly.NewAssembler(reassembly.NewStreamPool(factory))
	assembler.AssemblerOptions.MaxBufferedPagesTotal = opts.MaxBufferedPagesTotal
	assembler.AssemblerOptions.MaxBufferedPagesPerConnection = opts.MaxBufferedPagesPerConnection

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case packet, more := <-packets:
			if !more || packet == nil {
				assembler.FlushAll()
				return factory.exchanges, nil
			}
			if packet.NetworkLayer() == nil {
				continue
			}
			if tcp, ok := packet.TransportLayer().(*layers.TCP); ok {
				assembler.AssembleWithContext(packet.NetworkLayer().NetworkFlow(), tcp,
					contextFromTCPPacket(packet, tcp))
			}
		}
	}
}

// ReadFile assembles every exchange in the pcap file at path.
func ReadFile(ctx context.Context, path string, opt ...Option) ([]*Exchange, error) {
	packets, err := NewFileReader(path).Packets(ctx)
	if err != nil {
		return nil, err
	}
	return Assemble(ctx, packets, opt...)
}

// Internal implementation of reassembly.AssemblerContext that include TCP
// seq and ack numbers.
type assemblerCtxWithSeq struct {
	ci       gopacket.CaptureInfo
	seq, ack reassembly.Sequence
}

func contextFromTCPPacket(p gopacket.Packet, t *layers.TCP) *assemblerCtxWithSeq {
	return &assemblerCtxWithSeq{
		ci:  p.Metadata().CaptureInfo,
		seq: reassembly.Sequence(t.Seq),
		ack: reassembly.Sequence(t.Ack),
	}
}

func (ctx *assemblerCtxWithSeq) GetCaptureInfo() gopacket.CaptureInfo {
	return ctx.ci
}

// streamFactory implements reassembly.StreamFactory.
type streamFactory struct {
	serverPort int
	exchanges  []*Exchange
}

func (f *streamFactory) New(netFlow, tcpFlow gopacket.Flow, tcp *layers.TCP,
	_ reassembly.AssemblerContext) reassembly.Stream {
	first := Endpoint{IP: append([]byte(nil), netFlow.Src().Raw()...), Port: int(tcp.SrcPort)}
	second := Endpoint{IP: append([]byte(nil), netFlow.Dst().Raw()...), Port: int(tcp.DstPort)}

	// The stream's client-to-server direction is that of its first packet.
	flipped := false
	switch {
	case f.serverPort != 0:
		flipped = first.Port == f.serverPort && second.Port != f.serverPort
	case tcp.SYN && tcp.ACK:
		flipped = true
	}

	ex := &Exchange{Client: first, Server: second}
	if flipped {
		ex.Client, ex.Server = second, first
	}
	f.exchanges = append(f.exchanges, ex)
	return &stream{exchange: ex, flipped: flipped}
}

// stream implements reassembly.Stream.
type stream struct {
	exchange *Exchange
	flipped  bool
}

func (s *stream) Accept(_ *layers.TCP, _ gopacket.CaptureInfo, _ reassembly.TCPFlowDirection,
	_ reassembly.Sequence, start *bool, _ reassembly.AssemblerContext) bool {
	// Captures may begin mid-connection.
	*start = true
	return true
}

func (s *stream) ReassembledSG(sg reassembly.ScatterGather, _ reassembly.AssemblerContext) {
	length, _ := sg.Lengths()
	if length == 0 {
		return
	}
	dir, _, _, _ := sg.Info()
	fromClient := dir == reassembly.TCPDirClientToServer
	if s.flipped {
		fromClient = !fromClient
	}

	data := append([]byte(nil), sg.Fetch(length)...)
	segments := s.exchange.Segments
	if n := len(segments); n > 0 && segments[n-1].FromClient == fromClient {
		segments[n-1].Data = append(segments[n-1].Data, data...)
		return
	}
	s.exchange.Segments = append(segments, Segment{
		FromClient: fromClient,
		At:         sg.CaptureInfo(0).Timestamp,
		Data:       data,
	})
}

func (s *stream) ReassemblyComplete(_ reassembly.AssemblerContext) bool {
	return true
}
