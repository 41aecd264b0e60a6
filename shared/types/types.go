// Package types holds the persistent shapes shared across the
// ingestion core: chain and contract configuration, cached contract
// facts, and the decoded event record written to the event store.
package types

import "time"

// ChainType enumerates the network families the config store may
// declare. Only ChainTypeEVM has a registered adapter; the others are
// reserved so the registry stays extensible without stub adapters.
type ChainType string

const (
	ChainTypeEVM    ChainType = "evm"
	ChainTypeSolana ChainType = "solana"
	ChainTypeSui    ChainType = "sui"
)

// Strategy enumerates the ingestion strategies a chain can run.
type Strategy string

const (
	StrategyPush   Strategy = "push"
	StrategyPull   Strategy = "pull"
	StrategyHybrid Strategy = "hybrid"
)

// NativeCurrency describes the gas currency of a chain.
type NativeCurrency struct {
	Name     string `json:"name" gorm:"column:native_currency_name"`
	Symbol   string `json:"symbol" gorm:"column:native_currency_symbol"`
	Decimals int    `json:"decimals" gorm:"column:native_currency_decimals"`
}

// ChainConfig is the operator-managed description of one network.
// Identity: ChainID. Read-only to the ingestion core; written by
// operator tooling via the config store.
type ChainConfig struct {
	ChainID        int64          `json:"chainId" gorm:"primaryKey;column:chain_id"`
	Name           string         `json:"name"`
	Type           ChainType      `json:"type"`
	RPCURL         string         `json:"rpcUrl"`
	StreamURL      string         `json:"streamUrl"`
	Strategy       Strategy       `json:"strategy"`
	ScanIntervalMs int            `json:"scanIntervalMs"`
	Enabled        bool           `json:"enabled"`
	NativeCurrency NativeCurrency `json:"nativeCurrency" gorm:"embedded"`
	Metadata       JSONMap        `json:"metadata" gorm:"type:jsonb"`
}

// ContractConfig is the operator-managed description of one monitored
// contract. Identity: (ChainID, Address), Address normalized lowercase.
type ContractConfig struct {
	ChainID int64  `json:"chainId" gorm:"primaryKey;column:chain_id"`
	Address string `json:"address" gorm:"primaryKey"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Type    string `json:"type"` // erc20, erc721, ...

	// Events holds the ordered topic-0 hashes this contract should be
	// monitored for; ABI holds the event signatures sufficient to
	// decode them. Every hash in Events must resolve to exactly one
	// signature in ABI.
	Events []string `json:"events" gorm:"type:jsonb;serializer:json"`
	ABI    []string `json:"abi" gorm:"type:jsonb;serializer:json"`

	Enabled  bool    `json:"enabled"`
	Metadata JSONMap `json:"metadata" gorm:"type:jsonb"`
}

// Decimals reads metadata["decimals"], defaulting to 18.
func (c ContractConfig) Decimals() int {
	if v, ok := c.Metadata["decimals"].(float64); ok {
		return int(v)
	}
	if v, ok := c.Metadata["decimals"].(int); ok {
		return v
	}
	return 18
}

// IsStablecoin reads metadata["isStablecoin"].
func (c ContractConfig) IsStablecoin() bool {
	v, _ := c.Metadata["isStablecoin"].(bool)
	return v
}

// Priority reads metadata["priority"].
func (c ContractConfig) Priority() string {
	v, _ := c.Metadata["priority"].(string)
	return v
}

// ContractData is runtime-observed state about a contract, created on
// first observed event and mutated by handlers thereafter. Identity:
// (ChainID, ContractAddress).
type ContractData struct {
	ChainID            int64     `json:"chainId" gorm:"primaryKey;column:chain_id"`
	ContractAddress    string    `json:"contractAddress" gorm:"primaryKey"`
	ContractType       string    `json:"contractType"`
	CollectionKey      string    `json:"collectionKey"`
	Name               string    `json:"name"`
	Symbol             string    `json:"symbol"`
	Decimals           int       `json:"decimals"`
	TotalSupply        string    `json:"totalSupply"`
	Owner              string    `json:"owner"`
	IsActive           bool      `json:"isActive"`
	LastUpdated        time.Time `json:"lastUpdated"`
	FirstSeenBlock     int64     `json:"firstSeenBlock"`
	LastProcessedBlock int64     `json:"lastProcessedBlock"`
	StartFromBlock     int64     `json:"startFromBlock"`
	Metadata           JSONMap   `json:"metadata" gorm:"type:jsonb"`
}

// TransferCount/LargeTransferCount/LastTransferTimestamp live inside
// Metadata, matching the teacher's free-form metadata bag convention;
// typed accessors keep callers from sprinkling type assertions.

func (cd *ContractData) TransferCount() int64 {
	return metaInt64(cd.Metadata, "transferCount")
}

func (cd *ContractData) LargeTransferCount() int64 {
	return metaInt64(cd.Metadata, "largeTransferCount")
}

func (cd *ContractData) IncrementTransferCounts(isLarge bool) {
	if cd.Metadata == nil {
		cd.Metadata = JSONMap{}
	}
	cd.Metadata["transferCount"] = float64(cd.TransferCount() + 1)
	if isLarge {
		cd.Metadata["largeTransferCount"] = float64(cd.LargeTransferCount() + 1)
	}
	cd.Metadata["lastTransferTimestamp"] = time.Now().UnixMilli()
}

func metaInt64(m JSONMap, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

// JSONMap is a free-form metadata bag persisted as jsonb.
type JSONMap map[string]interface{}

// EventArgs is implemented by the decoder's tagged union of decoded
// argument shapes.
type EventArgs interface {
	isEventArgs()
}

// TransferArgs is the decoded Transfer(address,address,uint256) event.
type TransferArgs struct {
	From            string `json:"from"`
	To              string `json:"to"`
	ValueRaw        string `json:"valueRaw"`
	ValueFormatted  string `json:"valueFormatted"`
	IsLargeTransfer bool   `json:"isLargeTransfer"`
}

func (TransferArgs) isEventArgs() {}

// ApprovalArgs is the decoded Approval(address,address,uint256) event.
type ApprovalArgs struct {
	Owner          string `json:"owner"`
	Spender        string `json:"spender"`
	ValueRaw       string `json:"valueRaw"`
	ValueFormatted string `json:"valueFormatted"`
}

func (ApprovalArgs) isEventArgs() {}

// RawArgs is used when a topic-0 hash has no built-in decoder: the
// event name is still resolved via the ABI, but arguments are passed
// through undecoded.
type RawArgs struct {
	Topics []string `json:"topics"`
	Data   string   `json:"data"`
}

func (RawArgs) isEventArgs() {}

// EventData describes the payload carried by a BlockchainEvent.
type EventData struct {
	Topics           []string               `json:"topics"`
	RawData          string                 `json:"rawData"`
	LogIndex         uint                   `json:"logIndex"`
	TransactionIndex uint                   `json:"transactionIndex"`
	GasUsed          uint64                 `json:"gasUsed"`
	TxStatus         uint64                 `json:"txStatus"`
	Contract         ContractSummary        `json:"contract"`
	Event            DecodedEvent           `json:"event"`
}

// ContractSummary is the denormalized contract identity embedded in a
// persisted event so readers don't need a join to render it.
type ContractSummary struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Type   string `json:"type"`
}

// DecodedEvent names the decode outcome and carries its typed
// arguments alongside a JSON-serializable projection for storage.
type DecodedEvent struct {
	Name      string                 `json:"name"`
	Signature string                 `json:"signature"`
	Args      map[string]interface{} `json:"args"`
}

// BlockchainEvent is the append-mostly persisted record produced by a
// successful decode. Identity: (ChainID, TransactionHash, LogIndex),
// unique. Immutable once created.
type BlockchainEvent struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	ChainID          int64     `json:"chainId" gorm:"uniqueIndex:idx_event_identity;index:idx_chain_block"`
	TransactionHash  string    `json:"transactionHash" gorm:"uniqueIndex:idx_event_identity"`
	LogIndex         uint      `json:"logIndex" gorm:"uniqueIndex:idx_event_identity"`
	BlockNumber      int64     `json:"blockNumber" gorm:"index:idx_chain_block"`
	TimestampMs      int64     `json:"timestampMs" gorm:"index"`
	EventType        string    `json:"eventType" gorm:"index:idx_contract_type"`
	ContractAddress  string    `json:"contractAddress" gorm:"index:idx_contract_type"`
	Data             EventData `json:"data" gorm:"type:jsonb;serializer:json"`
	Processed        bool      `json:"processed" gorm:"index"`
	ProcessedAt      *time.Time `json:"processedAt"`
	ProcessingResult string    `json:"processingResult"`

	// TransferType and TokenAmount are derived fields the transfer
	// handler fills in before persisting: mint/burn/transfer
	// classification and the parsed decimal amount.
	TransferType string `json:"transferType"`
	TokenAmount  string `json:"tokenAmount"`

	CreatedAt time.Time `json:"createdAt"`
}

// EventFilter narrows an EventStore query over persisted events.
type EventFilter struct {
	ChainID   int64
	FromBlock int64
	ToBlock   int64
	EventName string
	Contract  string
	Page      int
	PageSize  int
}
