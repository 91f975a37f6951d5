package capture

import (
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

const (
	// The same default as tcpdump.
	defaultSnapLen = 262144

	maxSegmentSize = 1460

	clientISN uint32 = 1000
	serverISN uint32 = 5000
)

var (
	clientMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02}
)

// WriteFile writes exchanges to a new pcap file at path.
func WriteFile(path string, exchanges ...Exchange) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := Write(f, exchanges...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write renders exchanges as Ethernet frames in pcap format. Each exchange
// gets a synthetic three-way handshake and close so that dissectors pick up
// the stream.
func Write(w io.Writer, exchanges ...Exchange) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(defaultSnapLen, layers.LinkTypeEthernet); err != nil {
		return errors.Wrap(err, "failed to write pcap header")
	}
	for i := range exchanges {
		if err := writeExchange(pw, &exchanges[i]); err != nil {
			return errors.Wrapf(err, "failed to write exchange %s -> %s", exchanges[i].Client, exchanges[i].Server)
		}
	}
	return nil
}

// tcpState tracks the next sequence number on each side.
type tcpState struct {
	ex        *Exchange
	clientSeq uint32
	serverSeq uint32
}

func writeExchange(pw *pcapgo.Writer, ex *Exchange) error {
	st := &tcpState{ex: ex, clientSeq: clientISN, serverSeq: serverISN}
	start, end := ex.start(), ex.end()

	handshake := []struct {
		fromClient bool
		syn, ack   bool
	}{
		{fromClient: true, syn: true},
		{fromClient: false, syn: true, ack: true},
		{fromClient: true, ack: true},
	}
	for _, h := range handshake {
		if err := st.write(pw, start, h.fromClient, tcpFlags{SYN: h.syn, ACK: h.ack}, nil); err != nil {
			return err
		}
	}

	for _, s := range ex.Segments {
		data := s.Data
		for len(data) > 0 {
			n := len(data)
			if n > maxSegmentSize {
				n = maxSegmentSize
			}
			if err := st.write(pw, s.At, s.FromClient, tcpFlags{PSH: true, ACK: true}, data[:n]); err != nil {
				return err
			}
			data = data[n:]
		}
	}

	for _, fromClient := range []bool{true, false} {
		if err := st.write(pw, end, fromClient, tcpFlags{FIN: true, ACK: true}, nil); err != nil {
			return err
		}
	}
	return st.write(pw, end, true, tcpFlags{ACK: true}, nil)
}

type tcpFlags struct {
	SYN, ACK, PSH, FIN bool
}

func (st *tcpState) write(pw *pcapgo.Writer, at time.Time, fromClient bool, flags tcpFlags, payload []byte) error {
	src, dst := st.ex.Client, st.ex.Server
	srcMAC, dstMAC := clientMAC, serverMAC
	seq, ack := &st.clientSeq, &st.serverSeq
	if !fromClient {
		src, dst = dst, src
		srcMAC, dstMAC = dstMAC, srcMAC
		seq, ack = ack, seq
	}

	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(src.Port),
		DstPort: layers.TCPPort(dst.Port),
		Seq:     *seq,
		SYN:     flags.SYN,
		ACK:     flags.ACK,
		PSH:     flags.PSH,
		FIN:     flags.FIN,
		Window:  65535,
	}
	if flags.ACK {
		tcp.Ack = *ack
	}

	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	var network gopacket.SerializableLayer
	if src4, dst4 := src.IP.To4(), dst.IP.To4(); src4 != nil && dst4 != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      64,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    src4,
			DstIP:    dst4,
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   64,
			NextHeader: layers.IPProtocolTCP,
			SrcIP:      src.IP.To16(),
			DstIP:      dst.IP.To16(),
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, network, tcp, gopacket.Payload(payload)); err != nil {
		return errors.Wrap(err, "failed to serialize packet")
	}

	*seq += uint32(len(payload))
	if flags.SYN || flags.FIN {
		*seq++
	}

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: at, CaptureLength: len(data), Length: len(data)}
	return pw.WritePacket(ci, data)
}
