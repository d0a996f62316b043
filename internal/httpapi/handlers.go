package httpapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bookwaves/feig-rfid-bridge/internal/reader"
	"github.com/bookwaves/feig-rfid-bridge/internal/tagcodec"
)

// lookupReader resolves the {name} URL param against the registry,
// writing a 404 envelope and returning ok=false on miss.
func (s *Server) lookupReader(w http.ResponseWriter, r *http.Request) (*reader.ManagedSession, *reader.Engine, bool) {
	name := chi.URLParam(r, "name")
	session, engine, err := s.registry.Get(name)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return nil, nil, false
	}
	return session, engine, true
}

// requireQuery reads a required query parameter, writing a 400 envelope
// and returning ok=false if absent.
func requireQuery(w http.ResponseWriter, logger *slog.Logger, r *http.Request, key string) (string, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		err := fmt.Errorf("%w: %q", errMissingQueryParam, key)
		writeError(w, logger, statusFor(err), err)
		return "", false
	}
	return v, true
}

// -------------------------------------------------------------------------
// GET /readers
// -------------------------------------------------------------------------

func (s *Server) handleReaders(w http.ResponseWriter, _ *http.Request) {
	sessions := s.registry.All()
	out := make([]envelope, 0, len(sessions))
	for _, sess := range sessions {
		cfg := sess.Config()
		entry := envelope{
			"name":               cfg.Name,
			"address":            cfg.Address,
			"port":               cfg.Port,
			"mode":               string(cfg.Mode),
			"antennas":           cfg.Antennas,
			"antennaMask":        antennaMaskHexString(cfg.AntennaMask()),
			"isConnected":        sess.IsConnected(),
			"connectionStatus":   sess.ConnectionStatus(),
			"notificationActive": sess.IsNotificationActive(),
		}
		if sess.IsNotificationActive() {
			entry["notificationPort"] = sess.ListenerPort()
		}
		out = append(out, entry)
	}
	writeSuccess(w, envelope{"readerCount": len(out), "readers": out})
}

func antennaMaskHexString(mask uint16) string {
	return "0x" + strings.ToUpper(strconv.FormatUint(uint64(mask), 16))
}

// -------------------------------------------------------------------------
// GET /inventory/{name}
// -------------------------------------------------------------------------

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	tags, err := engine.Inventory(r.Context())
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	out := make([]envelope, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagEnvelope(t))
	}
	writeSuccess(w, envelope{
		"message": fmt.Sprintf("found %d tag(s)", len(tags)),
		"count":   len(tags),
		"tags":    out,
	})
}

func tagEnvelope(t tagcodec.Tag) envelope {
	rssi := make([]envelope, 0, len(t.RSSIValues()))
	for _, v := range t.RSSIValues() {
		rssi = append(rssi, envelope{"antenna": v.Antenna, "rssi": v.RSSI})
	}
	return envelope{
		"tagType":    t.Kind().String(),
		"epc":        strings.ToUpper(hex.EncodeToString(t.EPC())),
		"pc":         pcHex(t),
		"mediaId":    t.GetMediaID(),
		"secured":    t.IsSecured(),
		"rssiValues": rssi,
	}
}

func pcHex(t tagcodec.Tag) string {
	pc := t.PC()
	return strings.ToUpper(hex.EncodeToString(pc[:]))
}

// -------------------------------------------------------------------------
// POST /initialize/{name}
// -------------------------------------------------------------------------

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	mediaID, ok := requireQuery(w, s.logger, r, "mediaId")
	if !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = s.defaultTagFormat
	}
	secured := true
	if v := r.URL.Query().Get("secured"); v != "" {
		parsed, perr := strconv.ParseBool(v)
		if perr != nil {
			err := fmt.Errorf("%w: secured=%q", errInvalidQueryParam, v)
			writeError(w, s.logger, statusFor(err), err)
			return
		}
		secured = parsed
	}

	result, err := engine.Initialize(r.Context(), tagcodec.FormatName(format), mediaID, secured)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	writeSuccess(w, envelope{
		"message": "tag initialized",
		"epc":     result.EPC,
		"pc":      result.PC,
		"mediaId": result.MediaID,
		"secured": result.Secured,
		"format":  string(result.Format),
		"tagType": result.TagType,
	})
}

// -------------------------------------------------------------------------
// POST /edit/{name}
// -------------------------------------------------------------------------

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	epc, ok := requireQuery(w, s.logger, r, "epc")
	if !ok {
		return
	}
	mediaID, ok := requireQuery(w, s.logger, r, "mediaId")
	if !ok {
		return
	}
	result, err := engine.Edit(r.Context(), epc, mediaID)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	writeSuccess(w, envelope{
		"message": "tag edited",
		"oldEpc":  result.OldEPC,
		"newEpc":  result.NewEPC,
		"mediaId": result.MediaID,
		"tagType": result.TagType,
	})
}

// -------------------------------------------------------------------------
// POST /clear/{name}
// -------------------------------------------------------------------------

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	epc, ok := requireQuery(w, s.logger, r, "epc")
	if !ok {
		return
	}
	result, err := engine.Clear(r.Context(), epc)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	writeSuccess(w, envelope{
		"message": "tag cleared",
		"oldEpc":  epc,
		"newEpc":  result.NewEPC,
		"newPc":   result.NewPC,
		"tid":     result.TID,
	})
}

// -------------------------------------------------------------------------
// POST /secure/{name}, POST /unsecure/{name}
// -------------------------------------------------------------------------

func (s *Server) handleSecure(w http.ResponseWriter, r *http.Request) {
	s.handleSetSecured(w, r, true)
}

func (s *Server) handleUnsecure(w http.ResponseWriter, r *http.Request) {
	s.handleSetSecured(w, r, false)
}

func (s *Server) handleSetSecured(w http.ResponseWriter, r *http.Request, secured bool) {
	_, engine, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	epc, ok := requireQuery(w, s.logger, r, "epc")
	if !ok {
		return
	}
	result, err := engine.SetSecured(r.Context(), epc, secured)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	verb := "secured"
	if !secured {
		verb = "unsecured"
	}
	writeSuccess(w, envelope{
		"message": "tag " + verb,
		"epc":     result.EPC,
		"tagType": result.TagType,
		"secured": result.Secured,
	})
}

// -------------------------------------------------------------------------
// GET /analyze/{name}
// -------------------------------------------------------------------------

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	_, engine, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	epc, ok := requireQuery(w, s.logger, r, "epc")
	if !ok {
		return
	}
	result, err := engine.Analyze(r.Context(), epc)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	writeSuccess(w, envelope{
		"epc": result.EPCBank,
		"analysis": envelope{
			"tagType":      result.TagType,
			"mediaId":      result.MediaID,
			"epcBank":      result.EPCBank,
			"tidBank":      result.TIDBank,
			"reservedBank": result.ReservedBank,
			"lockStatus":   result.LockStatus,
			"securityAssessment": envelope{
				"properlySecured": result.SecurityAssessment.ProperlySecured,
				"issues":          result.SecurityAssessment.Issues,
			},
		},
	})
}

// -------------------------------------------------------------------------
// Notification endpoints
// -------------------------------------------------------------------------

func (s *Server) handleNotificationStart(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.lookupReader(w, r); !ok {
		return
	}
	name := chi.URLParam(r, "name")
	port, started, err := s.registry.StartNotification(contextWithoutCancel(r.Context()), name)
	if err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	if !started {
		err := fmt.Errorf("%w for reader %q", errNotificationAlreadyActive, name)
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	writeSuccess(w, envelope{
		"message":    "notification started",
		"port":       port,
		"readerName": name,
	})
}

// contextWithoutCancel lets the notification listener outlive the HTTP
// request that started it; the listener's own lifecycle is governed by
// StopNotification / registry Shutdown, not by the client's connection.
func contextWithoutCancel(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (s *Server) handleNotificationStop(w http.ResponseWriter, r *http.Request) {
	session, _, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	if !session.IsNotificationActive() {
		err := fmt.Errorf("%w for reader %q", errNotificationNotActive, chi.URLParam(r, "name"))
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	if err := s.registry.StopNotification(chi.URLParam(r, "name")); err != nil {
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	writeSuccess(w, envelope{"message": "notification stopped"})
}

func (s *Server) handleNotificationEvents(w http.ResponseWriter, r *http.Request) {
	session, _, ok := s.lookupReader(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if !session.IsNotificationActive() {
		err := fmt.Errorf("%w for reader %q", errNotificationNotActive, name)
		writeError(w, s.logger, statusFor(err), err)
		return
	}
	events := session.Queue().PollAll()
	out := make([]envelope, 0, len(events))
	for _, ev := range events {
		out = append(out, notificationEventEnvelope(ev))
	}
	writeSuccess(w, envelope{
		"readerName":  name,
		"eventCount":  len(out),
		"isConnected": session.IsConnected(),
		"events":      out,
	})
}

func notificationEventEnvelope(ev reader.NotificationEvent) envelope {
	rssi := make([]envelope, 0, len(ev.RSSI))
	for _, v := range ev.RSSI {
		rssi = append(rssi, envelope{"antenna": v.Antenna, "rssi": v.RSSI})
	}
	out := envelope{
		"timestamp":       ev.Timestamp,
		"kind":            string(ev.Kind),
		"tagIdHex":        ev.TagIDHex,
		"rssi":            rssi,
		"readerType":      ev.ReaderType,
		"firmwareVersion": ev.FirmwareVersion,
	}
	if ev.ReaderTimestamp != nil {
		out["readerTimestamp"] = *ev.ReaderTimestamp
	}
	return out
}

func (s *Server) handleNotificationStatus(w http.ResponseWriter, _ *http.Request) {
	sessions := s.registry.All()
	active := make([]envelope, 0)
	for _, sess := range sessions {
		if !sess.IsNotificationActive() {
			continue
		}
		active = append(active, envelope{
			"readerName": sess.Config().Name,
			"port":       sess.ListenerPort(),
			"queueDepth": sess.Queue().Count(),
			"dropped":    sess.Queue().Dropped(),
		})
	}
	writeSuccess(w, envelope{"activeSessions": len(active), "sessions": active})
}
