package engine

import "sort"

// StatusCode identifies a status event reported by the helper on an `S`
// line. EOF is synthesised locally by the control-channel reader, never
// sent by the helper itself.
type StatusCode int

const (
	StatusUnknown StatusCode = iota
	StatusBadSig
	StatusBeginDecryption
	StatusBeginSigning
	StatusDecryptionFailed
	StatusDecryptionOkay
	StatusEndDecryption
	StatusEOF
	StatusErrSig
	StatusGoodSig
	StatusImportOk
	StatusImportProblem
	StatusImportRes
	StatusImported
	StatusInvRecp
	StatusKeyExpired
	StatusKeyRevoked
	StatusNewSig
	StatusNoRecp
	StatusNoData
	StatusNotation
	StatusPlaintext
	StatusPolicyURL
	StatusSigCreated
	StatusTrustFully
	StatusTrustMarginal
	StatusTrustNever
	StatusTrustUltimate
	StatusTrustUndefined
	StatusUnexpected
	StatusUserIDHint
)

// statusEntry is one row of the compile-time sorted name table. The
// table below is kept in ASCII order of Name; see TestStatusTableSorted.
type statusEntry struct {
	Name string
	Code StatusCode
}

var statusTable = []statusEntry{
	{"BADSIG", StatusBadSig},
	{"BEGIN_DECRYPTION", StatusBeginDecryption},
	{"BEGIN_SIGNING", StatusBeginSigning},
	{"DECRYPTION_FAILED", StatusDecryptionFailed},
	{"DECRYPTION_OKAY", StatusDecryptionOkay},
	{"END_DECRYPTION", StatusEndDecryption},
	{"ERRSIG", StatusErrSig},
	{"GOODSIG", StatusGoodSig},
	{"IMPORTED", StatusImported},
	{"IMPORT_OK", StatusImportOk},
	{"IMPORT_PROBLEM", StatusImportProblem},
	{"IMPORT_RES", StatusImportRes},
	{"INV_RECP", StatusInvRecp},
	{"KEYEXPIRED", StatusKeyExpired},
	{"KEYREVOKED", StatusKeyRevoked},
	{"NEWSIG", StatusNewSig},
	{"NODATA", StatusNoData},
	{"NOTATION_DATA", StatusNotation},
	{"NO_RECP", StatusNoRecp},
	{"PLAINTEXT", StatusPlaintext},
	{"POLICY_URL", StatusPolicyURL},
	{"SIG_CREATED", StatusSigCreated},
	{"TRUST_FULLY", StatusTrustFully},
	{"TRUST_MARGINAL", StatusTrustMarginal},
	{"TRUST_NEVER", StatusTrustNever},
	{"TRUST_ULTIMATE", StatusTrustUltimate},
	{"TRUST_UNDEFINED", StatusTrustUndefined},
	{"UNEXPECTED", StatusUnexpected},
	{"USERID_HINT", StatusUserIDHint},
}

// lookupStatus maps a status name to its code via binary search over the
// statically sorted table. Unknown names return (StatusUnknown, false);
// callers are expected to log and otherwise ignore them.
func lookupStatus(name string) (StatusCode, bool) {
	i := sort.Search(len(statusTable), func(i int) bool {
		return statusTable[i].Name >= name
	})
	if i < len(statusTable) && statusTable[i].Name == name {
		return statusTable[i].Code, true
	}
	return StatusUnknown, false
}

// StatusHandler receives every dispatched `S` event for a session, plus
// the synthetic EOF event emitted once the control channel reaches a
// terminal OK/ERR/EOF. rest is the substring after the first space of
// the `S` line, or "" if absent.
type StatusHandler func(code StatusCode, name, rest string)

// ColonHandler receives each reassembled colon-data record. The return
// value is reserved for future flow control and is presently ignored by
// the session, per the unresolved return-code contract.
type ColonHandler func(record []byte) int
