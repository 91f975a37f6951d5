package capture

import (
	"context"
	"io"
	"os"

	"github.com/google/gopacket"
	_ "github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

type PacketReader interface {
	Packets(ctx context.Context) (<-chan gopacket.Packet, error)
}

// Read packets from a pcap file.
type FileReader struct {
	Path string
}

func NewFileReader(path string) *FileReader {
	return &FileReader{Path: path}
}

func (f FileReader) Packets(ctx context.Context) (<-chan gopacket.Packet, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", f.Path)
	}
	out, err := packets(ctx, file, file.Close)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "failed to read %s", f.Path)
	}
	return out, nil
}

// Read packets from an in-memory or streamed pcap.
type StreamReader struct {
	r io.Reader
}

func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

func (s StreamReader) Packets(ctx context.Context) (<-chan gopacket.Packet, error) {
	return packets(ctx, s.r, func() error { return nil })
}

func packets(ctx context.Context, r io.Reader, closer func() error) (<-chan gopacket.Packet, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}

	out := make(chan gopacket.Packet, 10)
	go func() {
		defer closer()
		defer close(out)
		packetSource := gopacket.NewPacketSource(pr, pr.LinkType())
		for packet := range packetSource.Packets() {
			select {
			case <-ctx.Done():
				return
			case out <- packet:
			}
		}
	}()
	return out, nil
}
