package types

// Byte-widths of the NEAR block header regions, as carried by
// near-primitives; see spec.md §3.
const (
	TypeByteLen            = 1
	ProtocolVersionBytes   = 4
	BlockHeightBytes       = 8
	StakeBytes             = 16
	PkHashBytes            = 32
	SigBytes               = 64
	InnerLiteBytes         = 208
	EpochDurationBlocks    = 43200
	ApprovalMessageLen     = 1 + PkHashBytes + BlockHeightBytes // 41
	EndorsementLeadingByte = 0x00
)

// HeaderData is the three-region decomposition of a raw NEAR block
// header that the canonicalizer hashes.
type HeaderData struct {
	PrevHash  []byte
	InnerLite []byte
	InnerRest []byte
}

// HeaderDataFields is the capability view of one block used by the
// block-data prover (4.F) and the orchestrator. Every field but Hash
// and Approvals is optional: a bare epoch-anchor block carries no
// approvals, and not every relation touches every field. Modeled as a
// flat struct rather than a tagged interface hierarchy — NEAR has no
// meaningful "Block vs EpochBlock" polymorphism beyond whether the
// validator table is attached, so the digest step (4.B) attaches it
// separately instead of the type carrying two shapes.
type HeaderDataFields struct {
	Hash            []byte
	Height          *uint64
	PrevHash        []byte
	BpHash          []byte
	EpochID         []byte
	NextEpochID     []byte
	LastDsFinalHash []byte
	LastFinalHash   []byte
	Approvals       [][]byte // positionally aligned with the epoch's validator set; nil entry = no approval

	// PrevStateRoot, OutcomeRoot, Timestamp and BlockMerkleRoot are the
	// remaining inner_lite fields canonical.InnerLiteFields needs beyond
	// what the rest of this struct already carries; InnerRest is the raw
	// borsh-encoded inner_rest region. Both are only populated when the
	// orchestrator needs to re-derive Hash via canonical.Hash, not by
	// every caller — see nearrpc's blockRPCResult doc comment for
	// how this client's RPC surface exposes InnerRest.
	PrevStateRoot   []byte
	OutcomeRoot     []byte
	Timestamp       *uint64
	BlockMerkleRoot []byte
	InnerRest       []byte
}

// ValidatorStake is one entry of an ordered validator-stake list.
// Stake is kept as a decimal string as NEAR RPC returns it, parsed to
// *big.Int/uint256 only where arithmetic is needed (orchestrator,
// validators).
type ValidatorStake struct {
	AccountID     string
	PublicKey     [32]byte // raw ed25519 public key, stripped of the "ed25519:" prefix and base58-decoded
	Stake         string
	StructVersion uint8
}
