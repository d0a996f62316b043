package reader

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
)

// frameDecoder reads length-prefixed JSON event frames from a
// notification connection: a 4-byte big-endian length followed by that
// many bytes of JSON. This framing is the bridge's own placeholder for
// the vendor notification wire protocol; a production binding replaces
// frameDecoder with the vendor SDK's own decoder while keeping the same
// driver.Event shape downstream.
type frameDecoder struct {
	r *bufio.Reader
}

func newFrameDecoder(r io.Reader) *frameDecoder {
	return &frameDecoder{r: bufio.NewReader(r)}
}

type wireEvent struct {
	Kind            string             `json:"kind"`
	TagIDHex        string             `json:"tagIdHex,omitempty"`
	RSSI            []wireRSSISample   `json:"rssi,omitempty"`
	ReaderTimestamp *time.Time         `json:"readerTimestamp,omitempty"`
	ReaderType      string             `json:"readerType,omitempty"`
	FirmwareVersion string             `json:"firmwareVersion,omitempty"`
}

type wireRSSISample struct {
	Antenna uint8 `json:"antenna"`
	RSSI    int32 `json:"rssi"`
}

func (d *frameDecoder) next() (driver.Event, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return driver.Event{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > 1<<20 {
		return driver.Event{}, fmt.Errorf("notification frame decoder: implausible frame length %d", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return driver.Event{}, err
	}

	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return driver.Event{}, fmt.Errorf("notification frame decoder: %w", err)
	}

	ev := driver.Event{
		Kind:            driver.EventKind(w.Kind),
		TagIDHex:        w.TagIDHex,
		ReaderType:      w.ReaderType,
		FirmwareVersion: w.FirmwareVersion,
	}
	for _, r := range w.RSSI {
		ev.RSSI = append(ev.RSSI, driver.RSSIItem{Antenna: r.Antenna, RSSI: r.RSSI})
	}
	if w.ReaderTimestamp != nil {
		ev.ReaderTimestamp = *w.ReaderTimestamp
	}
	return ev, nil
}
