// Package bridge quotes and executes cross-chain deposits into the
// session's settlement chain via the LI.FI aggregator.
package bridge

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/flowdesk/flowdesk/internal/infrastructure/logging"
)

// DefaultAPIURL is the public LI.FI endpoint.
const DefaultAPIURL = "https://li.quest/v1"

// Stage is a step in the deposit flow. Stages progress strictly forward;
// only Reset returns to idle.
type Stage string

// Deposit stages.
const (
	StageIdle       Stage = "idle"
	StageQuoting    Stage = "quoting"
	StageApproving  Stage = "approving"
	StageBridging   Stage = "bridging"
	StageDepositing Stage = "depositing"
	StageDone       Stage = "done"
	StageError      Stage = "error"
)

// Quote is the subset of a LI.FI quote the client acts on.
type Quote struct {
	ID       string `json:"id"`
	Estimate struct {
		ToAmount    string `json:"toAmount"`
		ToAmountMin string `json:"toAmountMin"`
	} `json:"estimate"`
	TransactionRequest struct {
		To      string `json:"to"`
		Data    string `json:"data"`
		Value   string `json:"value"`
		ChainID uint64 `json:"chainId"`
	} `json:"transactionRequest"`
}

// QuoteRequest names the route to quote.
type QuoteRequest struct {
	FromChain   uint64
	ToChain     uint64
	FromToken   string
	ToToken     string
	FromAmount  string
	FromAddress string
}

// TransactionSender is the wallet's transaction capability, used only by
// the bridging flow.
type TransactionSender interface {
	SendTransaction(ctx context.Context, to common.Address, data []byte, value *big.Int, chainID uint64) (common.Hash, error)
}

// State is the observable deposit state.
type State struct {
	Stage  Stage
	Quote  *Quote
	TxHash string
	Err    string
}

// Service drives the deposit flow. One deposit at a time per service.
type Service struct {
	apiURL string
	client *http.Client
	sender TransactionSender
	logger *logging.Logger

	mu    sync.Mutex
	state State
}

// NewService creates a deposit service; empty apiURL means the public
// endpoint.
func NewService(apiURL string, sender TransactionSender, logger *logging.Logger) *Service {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Service{
		apiURL: apiURL,
		client: &http.Client{},
		sender: sender,
		logger: logger,
		state:  State{Stage: StageIdle},
	}
}

// State returns a copy of the current deposit state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GetQuote fetches a bridge quote for the route. The stage passes through
// quoting and returns to idle whether or not the quote succeeds.
func (s *Service) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	s.setStage(StageQuoting, nil, "", "")

	q := url.Values{}
	q.Set("fromChain", strconv.FormatUint(req.FromChain, 10))
	q.Set("toChain", strconv.FormatUint(req.ToChain, 10))
	q.Set("fromToken", req.FromToken)
	q.Set("toToken", req.ToToken)
	q.Set("fromAmount", req.FromAmount)
	q.Set("fromAddress", req.FromAddress)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		s.setStage(StageIdle, nil, "", err.Error())
		return nil, errors.Wrap(err, "building quote request")
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		s.setStage(StageIdle, nil, "", err.Error())
		return nil, errors.Wrap(err, "fetching quote")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := errors.Errorf("li.fi returned status %d", resp.StatusCode)
		s.setStage(StageIdle, nil, "", err.Error())
		return nil, err
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		s.setStage(StageIdle, nil, "", err.Error())
		return nil, errors.Wrap(err, "decoding quote")
	}

	s.setStage(StageIdle, &quote, "", "")
	return &quote, nil
}

// Execute submits the quoted bridge transaction through the wallet and
// walks the flow to done. Any failure parks the flow in the error stage;
// Reset clears it.
func (s *Service) Execute(ctx context.Context, quote *Quote) error {
	if quote == nil {
		return errors.New("no quote to execute")
	}

	s.setStage(StageApproving, quote, "", "")

	value := new(big.Int)
	if quote.TransactionRequest.Value != "" {
		if _, ok := value.SetString(quote.TransactionRequest.Value, 0); !ok {
			err := errors.Errorf("malformed transaction value %q", quote.TransactionRequest.Value)
			s.setStage(StageError, quote, "", err.Error())
			return err
		}
	}
	data := common.FromHex(quote.TransactionRequest.Data)

	s.setStage(StageBridging, quote, "", "")
	txHash, err := s.sender.SendTransaction(ctx,
		common.HexToAddress(quote.TransactionRequest.To),
		data, value, quote.TransactionRequest.ChainID)
	if err != nil {
		s.setStage(StageError, quote, "", err.Error())
		return errors.Wrap(err, "sending bridge transaction")
	}

	s.setStage(StageDepositing, quote, txHash.Hex(), "")
	s.logger.Info("bridge transaction submitted", logging.Fields{"tx": txHash.Hex()})

	s.setStage(StageDone, quote, txHash.Hex(), "")
	return nil
}

// Reset returns the flow to idle.
func (s *Service) Reset() {
	s.setStage(StageIdle, nil, "", "")
}

func (s *Service) setStage(stage Stage, quote *Quote, txHash, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{Stage: stage, Quote: quote, TxHash: txHash, Err: errMsg}
}
