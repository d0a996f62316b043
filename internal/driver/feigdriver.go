package driver

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// TCPReader is the production Reader implementation: it speaks a
// length-prefixed JSON command/response protocol over a single TCP
// connection to the reader. The vendor SDK's binary protocol is outside
// this module's reach; TCPReader is this bridge's own
// placeholder wire encoding, matching the framing frame_decoder.go
// already uses for the notification socket, and is meant to be swapped
// for a real vendor binding without touching internal/reader.
type TCPReader struct {
	mu      sync.Mutex
	conn    net.Conn
	lastErr string

	lastInventory []InventoryItem
}

// NewTCPReader returns an unconnected TCPReader.
func NewTCPReader() *TCPReader {
	return &TCPReader{}
}

func (r *TCPReader) Connect(ctx context.Context, addr string, port int, timeout time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr, port))
	if err != nil {
		r.lastErr = err.Error()
		return err
	}
	r.conn = conn
	return nil
}

func (r *TCPReader) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (r *TCPReader) Close() error {
	return r.Disconnect()
}

func (r *TCPReader) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

func (r *TCPReader) LastErrorText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// wireRequest/wireResponse are the command framing for the control
// connection, distinct from frameDecoder's notification-event framing
// even though both use the same 4-byte-length-prefixed-JSON shape.
type wireRequest struct {
	Command     string `json:"command"`
	AntennaMask uint16 `json:"antennaMask,omitempty"`
	TagIndex    int    `json:"tagIndex,omitempty"`
	Bank        int    `json:"bank,omitempty"`
	StartWord   int    `json:"startWord,omitempty"`
	NWords      int    `json:"nWords,omitempty"`
	Data        string `json:"data,omitempty"`
	Password    string `json:"password,omitempty"`
	Lock        *LockSpec `json:"lock,omitempty"`
	Port        int    `json:"port,omitempty"`
	BindAddr    string `json:"bindAddr,omitempty"`
	KeepAlive   bool   `json:"keepAlive,omitempty"`
}

type wireResponse struct {
	Ok           bool             `json:"ok"`
	Error        string           `json:"error,omitempty"`
	ISOError     int              `json:"isoError,omitempty"`
	Items        []wireInventory  `json:"items,omitempty"`
	Data         string           `json:"data,omitempty"`
}

type wireInventory struct {
	IDHex string         `json:"idHex"`
	RSSI  []wireRSSIItem `json:"rssi,omitempty"`
}

type wireRSSIItem struct {
	Antenna uint8 `json:"antenna"`
	RSSI    int32 `json:"rssi"`
}

func writeFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readFrame(r *bufio.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > 1<<20 {
		return fmt.Errorf("driver: implausible response frame length %d", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

// roundTrip sends req and decodes the matching response, holding the
// connection mutex for the duration of the exchange. The reader's
// control connection is strictly request/response, so one outstanding
// call at a time is sufficient.
func (r *TCPReader) roundTrip(req wireRequest) (wireResponse, error) {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return wireResponse{}, fmt.Errorf("driver: not connected")
	}

	if err := writeFrame(conn, req); err != nil {
		r.recordErr(err)
		return wireResponse{}, err
	}
	var resp wireResponse
	if err := readFrame(bufio.NewReader(conn), &resp); err != nil {
		r.recordErr(err)
		return wireResponse{}, err
	}
	if !resp.Ok {
		err := fmt.Errorf("driver: %s", resp.Error)
		r.recordErr(err)
		return resp, err
	}
	return resp, nil
}

func (r *TCPReader) recordErr(err error) {
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()
}

func (r *TCPReader) Inventory(ctx context.Context, antennaMask uint16) ([]InventoryItem, error) {
	resp, err := r.roundTrip(wireRequest{Command: "inventory", AntennaMask: antennaMask})
	if err != nil {
		if resp.Error != "" && containsNoTransponder(resp.Error) {
			r.mu.Lock()
			r.lastInventory = nil
			r.mu.Unlock()
			return nil, ErrNoTransponder
		}
		return nil, err
	}
	items := make([]InventoryItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		item := InventoryItem{IDHex: it.IDHex}
		for _, sample := range it.RSSI {
			item.RSSI = append(item.RSSI, RSSIItem{Antenna: sample.Antenna, RSSI: sample.RSSI})
		}
		items = append(items, item)
	}
	r.mu.Lock()
	r.lastInventory = items
	r.mu.Unlock()
	return items, nil
}

func containsNoTransponder(s string) bool {
	return strings.Contains(strings.ToLower(s), "no transponder")
}

func (r *TCPReader) TagHandle(i int) (TagHandle, error) {
	r.mu.Lock()
	n := len(r.lastInventory)
	r.mu.Unlock()
	if i < 0 || i >= n {
		return nil, fmt.Errorf("driver: tag handle index %d out of range (%d tags)", i, n)
	}
	return &tcpTagHandle{reader: r, index: i}, nil
}

func (r *TCPReader) StartNotification(callback func(Event)) error {
	_, err := r.roundTrip(wireRequest{Command: "startNotification"})
	return err
}

func (r *TCPReader) StopNotification() error {
	_, err := r.roundTrip(wireRequest{Command: "stopNotification"})
	return err
}

func (r *TCPReader) StartListener(port int, bindAddr string, keepAlive bool, callback func(Event)) error {
	_, err := r.roundTrip(wireRequest{Command: "startListener", Port: port, BindAddr: bindAddr, KeepAlive: keepAlive})
	return err
}

func (r *TCPReader) StopListener() error {
	_, err := r.roundTrip(wireRequest{Command: "stopListener"})
	return err
}

// tcpTagHandle is TagHandle bound to one inventory index of its parent
// TCPReader's most recent Inventory call.
type tcpTagHandle struct {
	reader       *TCPReader
	index        int
	lastISOError int
}

func hexEncode(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("driver: odd-length hex string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	return b, nil
}

func (h *tcpTagHandle) ReadMultipleBlocks(ctx context.Context, bank Bank, startWord, nWords int, password [4]byte) ([]byte, error) {
	resp, err := h.reader.roundTrip(wireRequest{
		Command:   "readBlocks",
		TagIndex:  h.index,
		Bank:      int(bank),
		StartWord: startWord,
		NWords:    nWords,
		Password:  hexEncode(password[:]),
	})
	if err != nil {
		h.lastISOError = resp.ISOError
		return nil, err
	}
	return hexDecode(resp.Data)
}

func (h *tcpTagHandle) WriteMultipleBlocks(ctx context.Context, bank Bank, startWord, nWords int, data []byte, password [4]byte) error {
	resp, err := h.reader.roundTrip(wireRequest{
		Command:   "writeBlocks",
		TagIndex:  h.index,
		Bank:      int(bank),
		StartWord: startWord,
		NWords:    nWords,
		Data:      hexEncode(data),
		Password:  hexEncode(password[:]),
	})
	if err != nil {
		h.lastISOError = resp.ISOError
		return err
	}
	return nil
}

func (h *tcpTagHandle) Lock(ctx context.Context, spec LockSpec, password [4]byte) error {
	resp, err := h.reader.roundTrip(wireRequest{
		Command:  "lock",
		TagIndex: h.index,
		Lock:     &spec,
		Password: hexEncode(password[:]),
	})
	if err != nil {
		h.lastISOError = resp.ISOError
		return err
	}
	return nil
}

func (h *tcpTagHandle) LastISOError() int {
	return h.lastISOError
}
