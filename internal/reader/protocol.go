package reader

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bookwaves/feig-rfid-bridge/internal/driver"
	"github.com/bookwaves/feig-rfid-bridge/internal/tagcodec"
)

const (
	maxBlockWriteRetries = 10
	blockWriteRetryDelay = 100 * time.Millisecond
	maxLockRetries       = 10
	postWriteSettleDelay = 50 * time.Millisecond
)

var zeroPassword [4]byte

// Engine implements the mutation protocol engine: inventory,
// initialize, edit, clear, secure/unsecure, and analyze, each run as a
// single closure passed to the owning session's Execute so the entire
// multi-step routine is atomic with respect to other callers of that
// session.
type Engine struct {
	session   *ManagedSession
	passwords *tagcodec.PasswordRegistry
	logger    *slog.Logger
	metrics   MetricsReporter
}

// NewEngine constructs a protocol engine bound to session. metrics may be
// nil, in which case the engine reports to the no-op default.
func NewEngine(session *ManagedSession, passwords *tagcodec.PasswordRegistry, metrics MetricsReporter, logger *slog.Logger) *Engine {
	if metrics == nil {
		metrics = defaultMetrics
	}
	return &Engine{
		session:   session,
		passwords: passwords,
		metrics:   metrics,
		logger:    logger.With(slog.String("reader", session.Config().Name)),
	}
}

// observe reports op's outcome, labeled by the engine's reader name.
func (e *Engine) observe(op string, err error) {
	e.metrics.ObserveOperation(e.session.Config().Name, op, err == nil)
}

func upperHex(b []byte) string { return strings.ToUpper(hex.EncodeToString(b)) }

// accessSecret resolves the configured secret used for access-password
// derivation. BR carries a single "secret" role instead of the Gen-2
// access/kill pair.
func (e *Engine) accessSecret(kind tagcodec.Kind) string {
	if kind == tagcodec.KindBR {
		return e.passwords.Lookup(kind, tagcodec.RoleSecret, e.logger)
	}
	return e.passwords.Lookup(kind, tagcodec.RoleAccess, e.logger)
}

// killSecret resolves the configured secret used for kill-password
// derivation, collapsing to the shared "secret" role for BR.
func (e *Engine) killSecret(kind tagcodec.Kind) string {
	if kind == tagcodec.KindBR {
		return e.passwords.Lookup(kind, tagcodec.RoleSecret, e.logger)
	}
	return e.passwords.Lookup(kind, tagcodec.RoleKill, e.logger)
}

func isAllZero(b [4]byte) bool { return b == zeroPassword }

// retryTransient runs fn up to attempts times, sleeping delay(attempt)
// between attempts, short-circuiting on success and re-surfacing
// connection errors immediately so ManagedSession.Execute's own ladder
// handles them instead of this one: these ladders address transient
// RF-link errors, not connection errors. On exhaustion the returned
// ErrTagWriteFailed wraps the last attempt's error text; the tag's ISO
// error code is not attached.
func retryTransient(ctx context.Context, attempts int, delay func(attempt int) time.Duration, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isConnectionError(lastErr.Error()) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(delay(attempt)):
		case <-ctx.Done():
			return ErrOperationInterrupted
		}
	}
	return fmt.Errorf("%w: %v", ErrTagWriteFailed, lastErr)
}

func blockWriteRetry(ctx context.Context, fn func() error) error {
	return retryTransient(ctx, maxBlockWriteRetries, func(int) time.Duration { return blockWriteRetryDelay }, fn)
}

func lockRetry(ctx context.Context, fn func() error) error {
	return retryTransient(ctx, maxLockRetries, func(attempt int) time.Duration {
		return time.Duration(100+(attempt-1)*50) * time.Millisecond
	}, fn)
}

// inventoryTags performs a single-antenna-masked inventory and decodes
// every item through the tag factory. A "no transponder"
// condition yields an empty, non-error result.
func (e *Engine) inventoryTags(ctx context.Context, d driver.Reader) ([]driver.InventoryItem, []tagcodec.Tag, error) {
	items, err := d.Inventory(ctx, e.session.Config().AntennaMask())
	if err != nil {
		if isNoTransponderError(err.Error()) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	tags := make([]tagcodec.Tag, 0, len(items))
	for _, it := range items {
		tag, terr := tagcodec.FromHex(it.IDHex)
		if terr != nil {
			e.logger.Warn("skipping unparsable inventory item", "idHex", it.IDHex, "error", terr)
			continue
		}
		for _, r := range it.RSSI {
			tag.AddRSSIReading(r.Antenna, r.RSSI)
		}
		tags = append(tags, tag)
	}
	return items, tags, nil
}

// Inventory implements the /inventory endpoint: a bare inventory with no
// particular-tag requirement, returning an empty list on zero tags.
func (e *Engine) Inventory(ctx context.Context) ([]tagcodec.Tag, error) {
	var tags []tagcodec.Tag
	err := e.session.Execute(ctx, func(d driver.Reader) error {
		_, decoded, ierr := e.inventoryTags(ctx, d)
		if ierr != nil {
			return ierr
		}
		tags = decoded
		return nil
	})
	e.observe("inventory", err)
	return tags, err
}

func findByEPCHex(items []driver.InventoryItem, epcHex string) int {
	for i, it := range items {
		if strings.EqualFold(it.IDHex, epcHex) {
			return i
		}
	}
	return -1
}

// InitializeResult is the outcome of Initialize, rendered by
// POST /initialize/{name}.
type InitializeResult struct {
	EPC     string
	PC      string
	MediaID string
	Secured bool
	Format  tagcodec.FormatName
	TagType string
}

// Initialize formats a blank tag with format/mediaID/secured. The field
// must contain exactly one tag.
func (e *Engine) Initialize(ctx context.Context, format tagcodec.FormatName, mediaID string, secured bool) (InitializeResult, error) {
	var result InitializeResult
	err := e.session.Execute(ctx, func(d driver.Reader) error {
		items, _, ierr := e.inventoryTags(ctx, d)
		if ierr != nil {
			return ierr
		}
		switch {
		case len(items) == 0:
			return ErrNoTagInField
		case len(items) > 1:
			return ErrMultiTagInField
		}

		newTag, nerr := tagcodec.NewByFormat(format, mediaID, secured)
		if nerr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMediaID, nerr)
		}

		accessPwd := newTag.AccessPassword(e.accessSecret(newTag.Kind()))
		killPwd := newTag.KillPassword(e.killSecret(newTag.Kind()))

		handle, herr := d.TagHandle(0)
		if herr != nil {
			return herr
		}

		// Step 1: write passwords, Reserved bank word 0, 4 words.
		pwData := append(append([]byte{}, killPwd[:]...), accessPwd[:]...)
		if werr := blockWriteRetry(ctx, func() error {
			return handle.WriteMultipleBlocks(ctx, driver.BankReserved, 0, 4, pwData, zeroPassword)
		}); werr != nil {
			return werr
		}

		// Step 2: write PC + EPC, EPC bank word 1.
		newPC := newTag.PC()
		newEPC := newTag.EPC()
		words := 1 + len(newEPC)/2
		payload := append(append([]byte{}, newPC[:]...), newEPC...)
		if werr := blockWriteRetry(ctx, func() error {
			return handle.WriteMultipleBlocks(ctx, driver.BankEPC, 1, words, payload, zeroPassword)
		}); werr != nil {
			return werr
		}

		// Step 3: re-inventory and re-select.
		select {
		case <-time.After(postWriteSettleDelay):
		case <-ctx.Done():
			return ErrOperationInterrupted
		}
		newItems, _, rerr := e.inventoryTags(ctx, d)
		if rerr != nil {
			return rerr
		}
		idx := findByEPCHex(newItems, upperHex(newEPC))
		if idx < 0 {
			return ErrTagVerificationFailed
		}
		freshHandle, herr2 := d.TagHandle(idx)
		if herr2 != nil {
			return herr2
		}

		// Step 4: lock kill/access/epc.
		spec := driver.LockSpec{Kill: driver.LockLock, Access: driver.LockLock, EPC: driver.LockLock, TID: driver.LockUnchanged, User: driver.LockUnchanged}
		if lerr := lockRetry(ctx, func() error { return freshHandle.Lock(ctx, spec, accessPwd) }); lerr != nil {
			return lerr
		}

		result = InitializeResult{
			EPC:     upperHex(newEPC),
			PC:      upperHex(newPC[:]),
			MediaID: mediaID,
			Secured: secured,
			Format:  format,
			TagType: newTag.Kind().String(),
		}
		return nil
	})
	e.observe("initialize", err)
	return result, err
}

// EditResult is the outcome of Edit, rendered by POST /edit/{name}.
type EditResult struct {
	OldEPC  string
	NewEPC  string
	MediaID string
	TagType string
}

// Edit rewrites the media id on the tag whose current EPC matches
// currentEPCHex.
func (e *Engine) Edit(ctx context.Context, currentEPCHex, mediaID string) (EditResult, error) {
	var result EditResult
	err := e.session.Execute(ctx, func(d driver.Reader) error {
		items, _, ierr := e.inventoryTags(ctx, d)
		if ierr != nil {
			return ierr
		}
		idx := findByEPCHex(items, currentEPCHex)
		if idx < 0 {
			return ErrNoTagInField
		}

		oldTag, oerr := tagcodec.FromHex(currentEPCHex)
		if oerr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMediaID, oerr)
		}
		if oldTag.Kind() == tagcodec.KindRaw {
			return ErrRawFormatUnsupported
		}
		format, ferr := tagcodec.FormatNameForKind(oldTag.Kind())
		if ferr != nil {
			return ferr
		}

		newTag, nerr := tagcodec.NewByFormat(format, mediaID, oldTag.IsSecured())
		if nerr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMediaID, nerr)
		}

		oldAccessPwd := oldTag.AccessPassword(e.accessSecret(oldTag.Kind()))
		newAccessPwd := newTag.AccessPassword(e.accessSecret(newTag.Kind()))
		newKillPwd := newTag.KillPassword(e.killSecret(newTag.Kind()))

		handle, herr := d.TagHandle(idx)
		if herr != nil {
			return herr
		}

		// Step 1: unlock with the old access password; tolerate failure.
		unlockSpec := driver.LockSpec{Kill: driver.LockUnlock, Access: driver.LockUnlock, EPC: driver.LockUnlock, TID: driver.LockUnchanged, User: driver.LockUnchanged}
		if uerr := handle.Lock(ctx, unlockSpec, oldAccessPwd); uerr != nil {
			e.logger.Warn("edit: unlock with old access password failed, continuing", "error", uerr)
		}

		// Step 2: write new passwords, Reserved bank word 0, 4 words.
		pwData := append(append([]byte{}, newKillPwd[:]...), newAccessPwd[:]...)
		if werr := blockWriteRetry(ctx, func() error {
			return handle.WriteMultipleBlocks(ctx, driver.BankReserved, 0, 4, pwData, zeroPassword)
		}); werr != nil {
			return werr
		}

		// Step 3: write the new EPC.
		newEPC := newTag.EPC()
		newPC := newTag.PC()
		sameLength := len(newEPC) == len(oldTag.EPC())
		if sameLength {
			words := len(newEPC) / 2
			if werr := blockWriteRetry(ctx, func() error {
				return handle.WriteMultipleBlocks(ctx, driver.BankEPC, 2, words, newEPC, zeroPassword)
			}); werr != nil {
				return werr
			}
		} else {
			words := 1 + len(newEPC)/2
			payload := append(append([]byte{}, newPC[:]...), newEPC...)
			if werr := blockWriteRetry(ctx, func() error {
				return handle.WriteMultipleBlocks(ctx, driver.BankEPC, 1, words, payload, zeroPassword)
			}); werr != nil {
				return werr
			}
		}

		// Step 4: re-inventory and re-select.
		select {
		case <-time.After(postWriteSettleDelay):
		case <-ctx.Done():
			return ErrOperationInterrupted
		}
		newItems, _, rerr := e.inventoryTags(ctx, d)
		if rerr != nil {
			return rerr
		}
		newIdx := findByEPCHex(newItems, upperHex(newEPC))
		if newIdx < 0 {
			return ErrTagVerificationFailed
		}
		freshHandle, herr2 := d.TagHandle(newIdx)
		if herr2 != nil {
			return herr2
		}

		// Step 5: relock with the new access password.
		lockSpec := driver.LockSpec{Kill: driver.LockLock, Access: driver.LockLock, EPC: driver.LockLock, TID: driver.LockUnchanged, User: driver.LockUnchanged}
		if lerr := lockRetry(ctx, func() error { return freshHandle.Lock(ctx, lockSpec, newAccessPwd) }); lerr != nil {
			return lerr
		}

		result = EditResult{
			OldEPC:  upperHex(oldTag.EPC()),
			NewEPC:  upperHex(newEPC),
			MediaID: mediaID,
			TagType: newTag.Kind().String(),
		}
		return nil
	})
	e.observe("edit", err)
	return result, err
}

// ClearResult is the outcome of Clear, rendered by POST /clear/{name}.
type ClearResult struct {
	NewEPC string
	NewPC  string
	TID    string
}

// clearPC is the fixed PC value written by Clear: length field 6, the
// rest zero.
var clearPC = [2]byte{0x30, 0x00}

// Clear restores the tag whose current EPC matches currentEPCHex to a
// neutral EPC equal to its TID.
func (e *Engine) Clear(ctx context.Context, currentEPCHex string) (ClearResult, error) {
	var result ClearResult
	err := e.session.Execute(ctx, func(d driver.Reader) error {
		items, _, ierr := e.inventoryTags(ctx, d)
		if ierr != nil {
			return ierr
		}
		idx := findByEPCHex(items, currentEPCHex)
		if idx < 0 {
			return ErrNoTagInField
		}
		handle, herr := d.TagHandle(idx)
		if herr != nil {
			return herr
		}

		// Step 2: read TID, bank word 0, 6 words.
		tidBytes, terr := handle.ReadMultipleBlocks(ctx, driver.BankTID, 0, 6, zeroPassword)
		if terr != nil {
			return fmt.Errorf("%w: %v", ErrTIDReadInvalid, terr)
		}
		if len(tidBytes) != 12 {
			return fmt.Errorf("%w: got %d bytes", ErrTIDReadInvalid, len(tidBytes))
		}

		// Step 3: best-effort unlock with the old access password.
		oldTag, oerr := tagcodec.FromHex(currentEPCHex)
		if oerr == nil && oldTag.Kind() != tagcodec.KindRaw {
			oldAccessPwd := oldTag.AccessPassword(e.accessSecret(oldTag.Kind()))
			if !isAllZero(oldAccessPwd) {
				unlockSpec := driver.LockSpec{Kill: driver.LockUnlock, Access: driver.LockUnlock, EPC: driver.LockUnlock, TID: driver.LockUnchanged, User: driver.LockUnchanged}
				if uerr := handle.Lock(ctx, unlockSpec, oldAccessPwd); uerr != nil {
					e.logger.Warn("clear: unlock with old access password failed, continuing", "error", uerr)
				}
			}
		}

		// Step 4: zero the Reserved bank, unauthenticated.
		zeroes := make([]byte, 8)
		if werr := blockWriteRetry(ctx, func() error {
			return handle.WriteMultipleBlocks(ctx, driver.BankReserved, 0, 4, zeroes, zeroPassword)
		}); werr != nil {
			return werr
		}

		// Step 5: write PC=0x3000 + TID as the new EPC, EPC bank word 1.
		payload := append(append([]byte{}, clearPC[:]...), tidBytes...)
		if werr := blockWriteRetry(ctx, func() error {
			return handle.WriteMultipleBlocks(ctx, driver.BankEPC, 1, 7, payload, zeroPassword)
		}); werr != nil {
			return werr
		}

		result = ClearResult{
			NewEPC: upperHex(tidBytes),
			NewPC:  upperHex(clearPC[:]),
			TID:    upperHex(tidBytes),
		}
		return nil
	})
	e.observe("clear", err)
	return result, err
}

// SecureResult is the outcome of Secure/Unsecure.
type SecureResult struct {
	EPC     string
	TagType string
	Secured bool
}

// SetSecured flips the circulation bit on the tag whose current EPC
// matches epcHex. Raw-format tags are rejected.
func (e *Engine) SetSecured(ctx context.Context, epcHex string, secured bool) (SecureResult, error) {
	var result SecureResult
	err := e.session.Execute(ctx, func(d driver.Reader) error {
		items, _, ierr := e.inventoryTags(ctx, d)
		if ierr != nil {
			return ierr
		}
		idx := findByEPCHex(items, epcHex)
		if idx < 0 {
			return ErrNoTagInField
		}

		tag, terr := tagcodec.FromHex(epcHex)
		if terr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMediaID, terr)
		}
		if tag.Kind() == tagcodec.KindRaw {
			return ErrRawFormatUnsupported
		}
		tag.SetSecured(secured)

		handle, herr := d.TagHandle(idx)
		if herr != nil {
			return herr
		}

		accessPwd := tag.AccessPassword(e.accessSecret(tag.Kind()))
		auth := accessPwd
		if isAllZero(accessPwd) {
			auth = zeroPassword
		}

		blocks := tag.DynamicBlocks()
		words := len(blocks) / 2
		startWord := tag.DynamicBlocksStartWord()
		if werr := blockWriteRetry(ctx, func() error {
			return handle.WriteMultipleBlocks(ctx, driver.BankEPC, int(startWord), words, blocks, auth)
		}); werr != nil {
			return werr
		}

		result = SecureResult{EPC: upperHex(tag.EPC()), TagType: tag.Kind().String(), Secured: secured}
		return nil
	})
	op := "secure"
	if !secured {
		op = "unsecure"
	}
	e.observe(op, err)
	return result, err
}

// SecurityAssessment summarizes Analyze's authentication probe of the
// Reserved bank.
type SecurityAssessment struct {
	ProperlySecured bool
	Issues          []string
}

// AnalysisResult is the outcome of Analyze, rendered by GET
// /analyze/{name}.
type AnalysisResult struct {
	TagType             string
	MediaID             string
	EPCBank             string
	TIDBank             string
	ReservedBank        string
	LockStatus          string
	SecurityAssessment  SecurityAssessment
}

// Analyze is a read-only inspection of the tag whose current EPC matches
// epcHex. No writes occur.
func (e *Engine) Analyze(ctx context.Context, epcHex string) (AnalysisResult, error) {
	var result AnalysisResult
	err := e.session.Execute(ctx, func(d driver.Reader) error {
		items, _, ierr := e.inventoryTags(ctx, d)
		if ierr != nil {
			return ierr
		}
		idx := findByEPCHex(items, epcHex)
		if idx < 0 {
			return ErrNoTagInField
		}

		theoretical, terr := tagcodec.FromHex(epcHex)
		if terr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMediaID, terr)
		}

		handle, herr := d.TagHandle(idx)
		if herr != nil {
			return herr
		}

		// Steps 1-2: read PC, then PC+EPC at the reported length.
		pcBytes, perr := handle.ReadMultipleBlocks(ctx, driver.BankEPC, 1, 1, zeroPassword)
		epcBank := ""
		if perr == nil && len(pcBytes) == 2 {
			lenWords := int((pcBytes[0] >> 3) & 0x1F)
			if full, ferr := handle.ReadMultipleBlocks(ctx, driver.BankEPC, 1, 1+lenWords, zeroPassword); ferr == nil {
				epcBank = upperHex(full)
			}
		}

		// Step 3: read TID.
		tidBank := ""
		if tidBytes, tierr := handle.ReadMultipleBlocks(ctx, driver.BankTID, 0, 6, zeroPassword); tierr == nil {
			tidBank = upperHex(tidBytes)
		}

		// Step 4: Reserved-bank read without and with theoretical auth.
		theoreticalAccess := theoretical.AccessPassword(e.accessSecret(theoretical.Kind()))
		theoreticalKill := theoretical.KillPassword(e.killSecret(theoretical.Kind()))
		theoreticalReserved := append(append([]byte{}, theoreticalKill[:]...), theoreticalAccess[:]...)

		noAuthBytes, noAuthErr := handle.ReadMultipleBlocks(ctx, driver.BankReserved, 0, 4, zeroPassword)
		readableWithoutAuth := noAuthErr == nil
		withAuthBytes, withAuthErr := handle.ReadMultipleBlocks(ctx, driver.BankReserved, 0, 4, theoreticalAccess)
		readableWithAuth := withAuthErr == nil

		reservedBank := ""
		var passwordsMatch bool
		var allZeroReserved bool
		if readableWithoutAuth {
			reservedBank = upperHex(noAuthBytes)
			allZeroReserved = allZeroBytes(noAuthBytes)
			passwordsMatch = string(noAuthBytes) == string(theoreticalReserved)
		} else if readableWithAuth {
			reservedBank = upperHex(withAuthBytes)
			allZeroReserved = allZeroBytes(withAuthBytes)
			passwordsMatch = string(withAuthBytes) == string(theoreticalReserved)
		}

		// Step 5: derive lock status.
		lockStatus := "UNKNOWN"
		switch {
		case !readableWithoutAuth && readableWithAuth:
			lockStatus = "LOCKED"
		case readableWithoutAuth && allZeroReserved:
			lockStatus = "UNLOCKED_NO_PASSWORD"
		case readableWithoutAuth && !allZeroReserved:
			lockStatus = "UNLOCKED"
		}

		// Step 6: security assessment.
		properlySecured := !readableWithoutAuth && readableWithAuth && passwordsMatch
		var issues []string
		if readableWithoutAuth && !allZeroReserved {
			issues = append(issues, "reserved bank passwords readable without authentication")
		}
		if (readableWithoutAuth || readableWithAuth) && !passwordsMatch {
			issues = append(issues, "reserved bank passwords do not match the configured secret")
		}
		if theoretical.Kind() != tagcodec.KindRaw && allZeroReserved && (readableWithoutAuth || readableWithAuth) {
			issues = append(issues, "non-raw format with zero passwords, initialization incomplete")
		}

		result = AnalysisResult{
			TagType:      theoretical.Kind().String(),
			MediaID:      theoretical.GetMediaID(),
			EPCBank:      epcBank,
			TIDBank:      tidBank,
			ReservedBank: reservedBank,
			LockStatus:   lockStatus,
			SecurityAssessment: SecurityAssessment{
				ProperlySecured: properlySecured,
				Issues:          issues,
			},
		}
		return nil
	})
	e.observe("analyze", err)
	return result, err
}

func allZeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
