package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kestrelwallet/kestrel/service/coin"
	"github.com/kestrelwallet/kestrel/service/metrics"
	natspkg "github.com/kestrelwallet/kestrel/service/nats"
)

// Orchestrator coordinates multi-coin operations across the configured
// coin services. It owns the concurrency and partial-failure policy:
// wallet creation is all-or-nothing, balance refresh and network probing
// degrade gracefully.
//
// Fan-out operations launch one goroutine per coin family under a
// per-call timeout and join on all of them before producing a result.
// Siblings are not cancelled when one fails; creation enforces
// all-or-nothing by checking the aggregate after the join.
type Orchestrator struct {
	registry     *coin.Registry
	store        *Store
	signer       Signer
	events       natspkg.Publisher
	metrics      *metrics.Metrics
	logger       *slog.Logger
	callTimeout  time.Duration
	scheduler    Scheduler
	pollInterval time.Duration
}

// Scheduler manages background balance polling schedules. Satisfied by
// the temporal package's client and mock.
type Scheduler interface {
	UpsertWalletSchedule(ctx context.Context, walletID string, interval time.Duration) error
	DeleteWalletSchedule(ctx context.Context, walletID string) error
}

// NewOrchestrator creates an orchestrator. events and m may be nil;
// callTimeout bounds every individual capability call so one hung family
// cannot stall a fan-out join forever (a timeout counts as that family's
// failure).
func NewOrchestrator(registry *coin.Registry, store *Store, signer Signer, events natspkg.Publisher, m *metrics.Metrics, callTimeout time.Duration, logger *slog.Logger) *Orchestrator {
	if signer == nil {
		signer = DigestSigner{}
	}
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}
	return &Orchestrator{
		registry:    registry,
		store:       store,
		signer:      signer,
		events:      events,
		metrics:     m,
		logger:      logger,
		callTimeout: callTimeout,
	}
}

// WithScheduler enables background balance polling: every wallet gets a
// schedule on create/import, deleted with the wallet. Schedule failures
// are logged, never fatal to the wallet operation.
func (o *Orchestrator) WithScheduler(s Scheduler, pollInterval time.Duration) {
	o.scheduler = s
	o.pollInterval = pollInterval
}

func (o *Orchestrator) upsertSchedule(ctx context.Context, walletID string) {
	if o.scheduler == nil {
		return
	}
	if err := o.scheduler.UpsertWalletSchedule(ctx, walletID, o.pollInterval); err != nil {
		o.logger.Warn("failed to create polling schedule", "wallet_id", walletID, "error", err)
	}
}

func (o *Orchestrator) deleteSchedule(ctx context.Context, walletID string) {
	if o.scheduler == nil {
		return
	}
	if err := o.scheduler.DeleteWalletSchedule(ctx, walletID); err != nil {
		o.logger.Warn("failed to delete polling schedule", "wallet_id", walletID, "error", err)
	}
}

type deriveResult struct {
	family  string
	address string
	err     error
}

// CreateWallet derives an address for every configured coin family from
// the mnemonic (generating a fresh one when empty), then appends,
// persists and selects the new wallet. If any single derivation fails,
// the whole creation fails and the store is untouched; a partial wallet
// is never observable.
func (o *Orchestrator) CreateWallet(ctx context.Context, name, mnemonic string) (*Wallet, error) {
	if name == "" {
		o.metrics.RecordWalletOp("create", "invalid")
		return nil, fmt.Errorf("%w: wallet name is required", ErrValidation)
	}
	if mnemonic == "" {
		generated, err := coin.NewMnemonic()
		if err != nil {
			return nil, err
		}
		mnemonic = generated
	} else if !coin.ValidateMnemonic(mnemonic) {
		o.metrics.RecordWalletOp("create", "invalid")
		return nil, fmt.Errorf("%w: seed phrase is not a valid BIP-39 mnemonic", ErrValidation)
	}

	families := o.registry.Families()
	if len(families) == 0 {
		return nil, fmt.Errorf("no coin services configured")
	}

	results := make(chan deriveResult, len(families))
	for _, family := range families {
		svc, _ := o.registry.Get(family)
		go func(family string, svc coin.Service) {
			cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()

			start := time.Now()
			address, err := svc.DeriveAddress(cctx, mnemonic)
			o.metrics.RecordCoinCall(family, "derive", callStatus(err), time.Since(start).Seconds())
			results <- deriveResult{family: family, address: address, err: err}
		}(family, svc)
	}

	addresses := make(map[string]string, len(families))
	var failures []error
	for range families {
		res := <-results
		if res.err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", res.family, res.err))
			continue
		}
		addresses[res.family] = res.address
	}

	if len(failures) > 0 {
		o.metrics.RecordWalletOp("create", "error")
		o.logger.Warn("wallet creation failed", "name", name, "failed_families", len(failures))
		return nil, fmt.Errorf("address derivation failed: %v", failures)
	}

	w := &Wallet{
		ID:        uuid.NewString(),
		Name:      name,
		Mnemonic:  mnemonic,
		Addresses: addresses,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.store.Add(ctx, w); err != nil {
		o.metrics.RecordWalletOp("create", "error")
		return nil, err
	}

	o.upsertSchedule(ctx, w.ID)
	o.metrics.RecordWalletOp("create", "success")
	o.logger.Info("wallet created", "wallet_id", w.ID, "name", name, "families", len(addresses))
	return w.Clone(), nil
}

// ImportWallet materializes a wallet from a backup with a freshly
// generated id, then appends, persists and selects it. Validation
// failures leave the store untouched.
func (o *Orchestrator) ImportWallet(ctx context.Context, backup Backup) (*Wallet, error) {
	if err := backup.Validate(); err != nil {
		o.metrics.RecordWalletOp("import", "invalid")
		return nil, err
	}

	addresses := make(map[string]string, len(backup.Addresses))
	for family, addr := range backup.Addresses {
		addresses[family] = addr
	}
	w := &Wallet{
		ID:        uuid.NewString(),
		Name:      backup.Name,
		Mnemonic:  backup.Mnemonic,
		Addresses: addresses,
		CreatedAt: backup.CreatedAt,
	}
	if err := o.store.Add(ctx, w); err != nil {
		o.metrics.RecordWalletOp("import", "error")
		return nil, err
	}

	o.upsertSchedule(ctx, w.ID)
	o.metrics.RecordWalletOp("import", "success")
	o.logger.Info("wallet imported", "wallet_id", w.ID, "name", w.Name)
	return w.Clone(), nil
}

// ExportWallet projects a live wallet into a Backup. It never fails for
// a wallet the store currently holds.
func (o *Orchestrator) ExportWallet(walletID string) (Backup, error) {
	w, err := o.store.Get(walletID)
	if err != nil {
		return Backup{}, err
	}
	return Backup{
		Name:      w.Name,
		Mnemonic:  w.Mnemonic,
		Addresses: w.Addresses,
		CreatedAt: w.CreatedAt,
	}, nil
}

// DeleteWallet removes a wallet by id. If the store becomes empty, all
// coin service session state is cleared since no derived keys remain
// meaningful.
func (o *Orchestrator) DeleteWallet(ctx context.Context, walletID string) error {
	if err := o.store.Remove(ctx, walletID); err != nil {
		o.metrics.RecordWalletOp("delete", "error")
		return err
	}
	o.deleteSchedule(ctx, walletID)
	if o.store.Len() == 0 {
		o.registry.ClearAll()
	}
	o.metrics.RecordWalletOp("delete", "success")
	o.logger.Info("wallet deleted", "wallet_id", walletID)
	return nil
}

type balanceResult struct {
	family  string
	balance coin.Balance
	err     error
}

// RefreshBalances queries every (family, address) pair the wallet holds
// concurrently and collects all results before returning. A family whose
// service call fails is omitted from the result; balance refresh
// degrades gracefully, unlike creation.
func (o *Orchestrator) RefreshBalances(ctx context.Context, walletID string) ([]coin.Balance, error) {
	w, err := o.store.Get(walletID)
	if err != nil {
		return nil, err
	}

	type pair struct {
		family  string
		address string
		svc     coin.Service
	}
	var pairs []pair
	for _, family := range o.registry.Families() {
		address, ok := w.Addresses[family]
		if !ok {
			continue
		}
		svc, ok := o.registry.Get(family)
		if !ok {
			continue
		}
		pairs = append(pairs, pair{family: family, address: address, svc: svc})
	}

	results := make(chan balanceResult, len(pairs))
	for _, p := range pairs {
		go func(p pair) {
			cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()

			start := time.Now()
			balance, err := p.svc.GetBalance(cctx, p.address)
			o.metrics.RecordCoinCall(p.family, "balance", callStatus(err), time.Since(start).Seconds())
			results <- balanceResult{family: p.family, balance: balance, err: err}
		}(p)
	}

	balances := make([]coin.Balance, 0, len(pairs))
	var failed []string
	for range pairs {
		res := <-results
		if res.err != nil {
			o.metrics.RecordFanoutLoss("balance", res.family)
			o.logger.Warn("balance refresh degraded", "wallet_id", walletID, "family", res.family, "error", res.err)
			failed = append(failed, res.family)
			continue
		}
		balances = append(balances, res.balance)
	}

	o.publishBalanceEvent(ctx, w, balances, failed)
	return balances, nil
}

func (o *Orchestrator) publishBalanceEvent(ctx context.Context, w *Wallet, balances []coin.Balance, failed []string) {
	if o.events == nil {
		return
	}
	event := &natspkg.BalanceEvent{
		WalletID:       w.ID,
		FailedFamilies: failed,
	}
	for _, b := range balances {
		event.Balances = append(event.Balances, natspkg.BalanceEntry{
			Family:    b.Family,
			Address:   w.Addresses[b.Family],
			Confirmed: b.Confirmed,
			Pending:   b.Pending,
			AsOf:      b.AsOf,
		})
	}
	if err := o.events.PublishBalance(ctx, event); err != nil {
		o.logger.Warn("failed to publish balance event", "wallet_id", w.ID, "error", err)
	}
}

// SendTransaction submits a transfer for the wallet on the given family.
// A wallet without an address for the family, or a family without a
// configured service, yields a local failed result with zero network
// calls. The fee is left unset so the service applies its own
// priority-based estimate; the service's result passes through verbatim.
func (o *Orchestrator) SendTransaction(ctx context.Context, walletID, toAddress string, amount decimal.Decimal, family string, priority coin.Priority) coin.TransactionResult {
	w, err := o.store.Get(walletID)
	if err != nil {
		o.metrics.RecordWalletOp("send", "invalid")
		return coin.FailedResult(fmt.Errorf("invalid wallet or coin type: %w", err))
	}
	fromAddress, ok := w.Addresses[family]
	if !ok {
		o.metrics.RecordWalletOp("send", "invalid")
		return coin.FailedResult(fmt.Errorf("invalid wallet or coin type: wallet holds no %s address", family))
	}
	svc, ok := o.registry.Get(family)
	if !ok {
		o.metrics.RecordWalletOp("send", "invalid")
		return coin.FailedResult(fmt.Errorf("invalid wallet or coin type: no service for %s", family))
	}
	if !amount.IsPositive() {
		o.metrics.RecordWalletOp("send", "invalid")
		return coin.FailedResult(fmt.Errorf("amount must be positive"))
	}

	cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	start := time.Now()
	result := svc.SendTransaction(cctx, coin.TransactionRequest{
		From:     fromAddress,
		To:       toAddress,
		Amount:   amount,
		Priority: priority,
		Family:   family,
	})
	status := "success"
	if !result.Success {
		status = "error"
	}
	o.metrics.RecordCoinCall(family, "send", status, time.Since(start).Seconds())
	o.metrics.RecordWalletOp("send", status)

	o.logger.Info("transaction submitted",
		"wallet_id", walletID,
		"family", family,
		"success", result.Success,
		"tx_id", result.TxID,
	)
	return result
}

// TransactionHistory fetches recent transactions for the wallet's
// address on the given family.
func (o *Orchestrator) TransactionHistory(ctx context.Context, walletID, family string) ([]coin.Transaction, error) {
	w, err := o.store.Get(walletID)
	if err != nil {
		return nil, err
	}
	address, ok := w.Addresses[family]
	if !ok {
		return nil, fmt.Errorf("wallet holds no %s address", family)
	}
	svc, ok := o.registry.Get(family)
	if !ok {
		return nil, fmt.Errorf("no service for %s", family)
	}

	cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	start := time.Now()
	txns, err := svc.GetTransactionHistory(cctx, address)
	o.metrics.RecordCoinCall(family, "history", callStatus(err), time.Since(start).Seconds())
	return txns, err
}

// EstimateFee delegates to the family's service. It never fails the
// caller: a missing service or a service error yields zero.
func (o *Orchestrator) EstimateFee(ctx context.Context, family string, priority coin.Priority) decimal.Decimal {
	svc, ok := o.registry.Get(family)
	if !ok {
		return decimal.Zero
	}

	cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	fee, err := svc.EstimateFee(cctx, priority)
	if err != nil {
		o.logger.Debug("fee estimate unavailable", "family", family, "error", err)
		return decimal.Zero
	}
	return fee
}

// CheckNetworkStatus concurrently probes every configured coin service.
// Families with no configured service are absent from the result.
func (o *Orchestrator) CheckNetworkStatus(ctx context.Context) map[string]bool {
	families := o.registry.Families()

	type probeResult struct {
		family    string
		reachable bool
	}
	results := make(chan probeResult, len(families))
	for _, family := range families {
		svc, _ := o.registry.Get(family)
		go func(family string, svc coin.Service) {
			cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
			defer cancel()

			start := time.Now()
			reachable := svc.CheckNetworkStatus(cctx)
			status := "success"
			if !reachable {
				status = "error"
			}
			o.metrics.RecordCoinCall(family, "probe", status, time.Since(start).Seconds())
			results <- probeResult{family: family, reachable: reachable}
		}(family, svc)
	}

	status := make(map[string]bool, len(families))
	for range families {
		res := <-results
		status[res.family] = res.reachable
	}
	return status
}

// ValidateAddress is a pure, synchronous per-family format check. It
// performs no network or cryptographic verification.
func (o *Orchestrator) ValidateAddress(address, family string) bool {
	return coin.ValidateAddress(address, family)
}

// SignMessage produces a signature via the configured Signer. The
// default DigestSigner is a deterministic placeholder, not a security
// primitive; see Signer.
func (o *Orchestrator) SignMessage(message, secret, family string) string {
	return o.signer.Sign(message, secret, family)
}

func callStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
