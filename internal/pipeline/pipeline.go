// Package pipeline orchestrates a full transaction decode: fetch the
// records, walk the execution metadata per operation, resolve invocation
// targets, classify failures and merge resource figures into the aggregate
// handed to the presentation layer.
//
// Everything degrades except the initial transaction fetch. A missing
// execution report, an undecodable meta blob or a failed effects page each
// cost only their own slice of the output.
package pipeline

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	hprotocol "github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/xdr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dotandev/sorograph/internal/config"
	"github.com/dotandev/sorograph/internal/graph"
	"github.com/dotandev/sorograph/internal/horizon"
	"github.com/dotandev/sorograph/internal/meta"
	"github.com/dotandev/sorograph/internal/resolver"
	"github.com/dotandev/sorograph/internal/resources"
	"github.com/dotandev/sorograph/internal/schema"
	"github.com/dotandev/sorograph/internal/scval"
	"github.com/dotandev/sorograph/internal/sorobanrpc"
	"github.com/dotandev/sorograph/internal/tracing"
	"github.com/dotandev/sorograph/internal/txerror"
)

// ReportClient is the read-execution endpoint consulted for settled
// outcomes. Optional; a nil client degrades to envelope-only extraction.
type ReportClient interface {
	GetExecutionReport(ctx context.Context, hash string) (*sorobanrpc.ExecutionReport, error)
}

type Pipeline struct {
	net      config.Network
	hz       horizon.Client
	rpc      ReportClient
	walker   *meta.Walker
	resolver *resolver.Resolver
}

func New(net config.Network, hz horizon.Client, rpc ReportClient) *Pipeline {
	return &Pipeline{
		net:      net,
		hz:       hz,
		rpc:      rpc,
		walker:   meta.NewWalker(),
		resolver: resolver.New(net),
	}
}

func (p *Pipeline) log() *log.Entry {
	return log.WithFields(log.Fields{"package": "pipeline", "network": p.net.Name})
}

// Decode assembles the full detail view for one transaction hash. Only a
// failed transaction fetch is fatal.
func (p *Pipeline) Decode(ctx context.Context, hash string) (*schema.TransactionDetails, error) {
	ctx, span := tracing.Tracer().Start(ctx, "pipeline.Decode",
		trace.WithAttributes(
			attribute.String("tx.hash", hash),
			attribute.String("network", p.net.Name),
		))
	defer span.End()

	tx, err := p.hz.GetTransaction(ctx, hash)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching transaction %s", hash)
	}

	details := &schema.TransactionDetails{
		Hash:          tx.Hash,
		SourceAccount: tx.Account,
		FeeCharged:    tx.FeeCharged,
		Successful:    tx.Successful,
		Ledger:        tx.Ledger,
		CreatedAt:     tx.LedgerCloseTime.UTC().Format("2006-01-02T15:04:05Z"),
	}

	records, err := p.hz.GetOperations(ctx, hash)
	if err != nil {
		p.log().WithError(err).Warn("operations fetch failed, continuing without")
	}
	surfaced := graph.Surfaced(records)
	details.OperationCount = len(surfaced)

	if effects, err := p.hz.GetEffects(ctx, hash); err != nil {
		p.log().WithError(err).Debug("effects fetch failed, continuing without")
	} else {
		details.Effects = effects
	}

	report := p.fetchReport(ctx, hash)
	txMeta, haveMeta := p.transactionMeta(tx, report)

	txUsage := schema.ResourceUsage{}
	for idx, rec := range surfaced {
		res := p.resolver.Resolve(resolver.Input{
			Op:          rec,
			OpIndex:     idx,
			Report:      report,
			EnvelopeXDR: tx.EnvelopeXdr,
		})
		if res.ContractID == resolver.NotInvocation {
			continue
		}

		sop := schema.SorobanOperation{
			Index:        idx,
			ContractID:   res.ContractID,
			FunctionName: res.FunctionName,
			Args:         res.Args,
			Auth:         authFor(res, report, idx),
		}

		if haveMeta {
			ex := p.walker.ExtractForOperation(txMeta, idx)
			sop.Events = ex.Events
			sop.StateChanges = ex.StateChanges
			sop.ContractCalls = ex.ContractCalls
			sop.TTLExtensions = ex.TTLExtensions
			sop.ReturnValue = ex.ReturnValue
			sop.Resources = resources.Analyze(ex.Resources, tx.EnvelopeXdr)
			if txUsage.Empty() && !sop.Resources.Empty() {
				txUsage = sop.Resources
			}
			details.Events = append(details.Events, ex.Events...)
		}
		details.Soroban = append(details.Soroban, sop)
	}

	if rep := p.classify(tx.ResultXdr); rep != nil {
		details.Errors = rep
		if rep.Failed() {
			markFailures(details.Soroban, rep)
		}
	}
	if !txUsage.Empty() {
		details.Resources = &txUsage
	}
	return details, nil
}

// Graph runs a decode and builds the node/edge model from it.
func (p *Pipeline) Graph(ctx context.Context, hash string) (*schema.TransactionDetails, graph.Graph, error) {
	details, err := p.Decode(ctx, hash)
	if err != nil {
		return nil, graph.Graph{}, err
	}
	records, err := p.hz.GetOperations(ctx, hash)
	if err != nil {
		p.log().WithError(err).Warn("operations fetch failed, graph will be empty")
	}
	return details, graph.Build(graph.Surfaced(records), details.Soroban), nil
}

func (p *Pipeline) fetchReport(ctx context.Context, hash string) *sorobanrpc.ExecutionReport {
	if p.rpc == nil {
		return nil
	}
	report, err := p.rpc.GetExecutionReport(ctx, hash)
	if err != nil {
		p.log().WithError(err).Debug("execution report unavailable")
		return nil
	}
	if !report.Found() {
		return nil
	}
	return report
}

// transactionMeta prefers the transport's meta blob and falls back to the
// execution report's copy.
func (p *Pipeline) transactionMeta(tx hprotocol.Transaction, report *sorobanrpc.ExecutionReport) (xdr.TransactionMeta, bool) {
	for _, blob := range []string{tx.ResultMetaXdr, reportMeta(report)} {
		if blob == "" {
			continue
		}
		m, err := meta.Parse(blob)
		if err != nil {
			p.log().WithError(err).Warn("undecodable transaction meta")
			continue
		}
		return m, true
	}
	return xdr.TransactionMeta{}, false
}

func reportMeta(report *sorobanrpc.ExecutionReport) string {
	if report == nil {
		return ""
	}
	return report.ResultMetaXDR
}

// authFor prefers the envelope-decoded auth summaries and falls back to the
// execution report's per-operation auth blobs.
func authFor(res resolver.Resolution, report *sorobanrpc.ExecutionReport, idx int) []string {
	if len(res.Auth) > 0 {
		return res.Auth
	}
	if report == nil || idx >= len(report.Results) {
		return nil
	}
	return report.Results[idx].Auth
}

func (p *Pipeline) classify(resultXDR string) *schema.ErrorReport {
	if resultXDR == "" {
		return nil
	}
	rep, err := txerror.Classify(resultXDR)
	if err != nil {
		p.log().WithError(err).Warn("undecodable transaction result")
		return nil
	}
	return &rep
}

// markFailures copies per-operation failure descriptions onto the matching
// decoded operations so the presentation layer has them in one place.
func markFailures(sops []schema.SorobanOperation, rep *schema.ErrorReport) {
	byIndex := make(map[int]schema.OperationError, len(rep.OperationErrors))
	for _, oe := range rep.OperationErrors {
		byIndex[oe.Index] = oe
	}
	for i := range sops {
		if oe, ok := byIndex[sops[i].Index]; ok {
			sops[i].FailureReason = oe.Description
			if sops[i].ReturnValue == nil {
				v := scval.Sentinel(oe.Code)
				sops[i].ReturnValue = &v
			}
		}
	}
}
