package receiptgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/padigital/receiptgen/blobstore"
)

const (
	payerArtifactSuffix  = "p"
	debtorArtifactSuffix = "d"
)

// Generator renders and stores the PDF artifacts a work item needs. Role
// failures are recorded as outcome values; the only errors the generator
// itself can surface are programming mistakes, never event data problems.
type Generator struct {
	builder   *TemplateBuilder
	renderer  Renderer
	artifacts blobstore.ArtifactStore
	cfg       *Config
	logger    *zap.Logger
}

func NewGenerator(builder *TemplateBuilder, renderer Renderer, artifacts blobstore.ArtifactStore, cfg *Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Generator{
		builder:   builder,
		renderer:  renderer,
		artifacts: artifacts,
		cfg:       cfg,
		logger:    logger,
	}
}

// GenerateReceipts produces the artifacts for a single-payment receipt
// according to the payer/debtor identities on the work item:
//
//   - payer equals debtor: one complete artifact recorded under the debtor
//   - payer absent: debtor partial artifact only
//   - debtor absent or anonymous: payer complete artifact only
//   - both present and distinct: payer complete plus debtor partial
//
// Roles whose artifact already exists are reported as already produced and
// never re-rendered.
func (g *Generator) GenerateReceipts(ctx context.Context, receipt *Receipt, event *BizEvent, workDir string) *Generation {
	generation := &Generation{}

	debtorCF := receipt.EventData.DebtorFiscalCode
	payerCF := receipt.EventData.PayerFiscalCode
	debtorPresent := debtorCF != "" && debtorCF != AnonymousTaxCode

	if payerCF != "" {
		if payerCF == debtorCF {
			generation.OnlyDebtor = true
			if receipt.MdAttach.Present() {
				generation.Debtor = AlreadyProducedOutcome()
				return generation
			}
			generation.Debtor = g.generateArtifact(ctx, event, g.cfg.ReceiptPrefix, payerArtifactSuffix, false, workDir)
			return generation
		}

		if receipt.MdAttachPayer.Present() {
			generation.Payer = AlreadyProducedOutcome()
		} else {
			generation.Payer = g.generateArtifact(ctx, event, g.cfg.ReceiptPrefix, payerArtifactSuffix, false, workDir)
		}

		if !debtorPresent {
			return generation
		}
	} else {
		generation.OnlyDebtor = true
	}

	if receipt.MdAttach.Present() {
		generation.Debtor = AlreadyProducedOutcome()
	} else {
		generation.Debtor = g.generateArtifact(ctx, event, g.cfg.ReceiptPrefix, debtorArtifactSuffix, true, workDir)
	}

	return generation
}

// generateArtifact runs the template, render, size check, upload chain for
// one role and folds any failure into the returned outcome.
func (g *Generator) generateArtifact(ctx context.Context, event *BizEvent, prefix, suffix string, partial bool, workDir string) *Outcome {
	tpl, err := g.builder.BuildReceipt(event, partial)
	if err != nil {
		return templateFailure(err)
	}
	return g.renderAndStore(ctx, tpl, artifactName(prefix, event.ID, suffix), workDir, event.ID)
}

func (g *Generator) renderAndStore(ctx context.Context, tpl *ReceiptTemplate, name, workDir, eventID string) *Outcome {
	pdfPath, err := g.renderer.Render(ctx, tpl, workDir)
	if err != nil {
		g.logger.Error("pdf rendering failed",
			zap.String("event_id", eventID),
			zap.Error(err),
		)
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			return FailedOutcome(renderErr.Code, renderErr.Message)
		}
		return FailedOutcome(CodePDFEngineError, err.Error())
	}

	info, err := os.Stat(pdfPath)
	if err != nil {
		return FailedOutcome(CodeBlobStorageError, fmt.Sprintf("reading rendered pdf: %v", err))
	}
	if info.Size() < g.cfg.MinPDFSize {
		return FailedOutcome(CodeBlobStorageError,
			fmt.Sprintf("rendered pdf is %d bytes, below the %d byte minimum", info.Size(), g.cfg.MinPDFSize))
	}

	file, err := os.Open(pdfPath)
	if err != nil {
		return FailedOutcome(CodeBlobStorageError, fmt.Sprintf("opening rendered pdf: %v", err))
	}
	defer file.Close()

	artifact, err := g.artifacts.Put(ctx, file, name)
	if err != nil {
		g.logger.Error("artifact upload failed",
			zap.String("artifact", name),
			zap.Error(err),
		)
		return FailedOutcome(CodeBlobStorageError, fmt.Sprintf("saving pdf to blob storage: %v", err))
	}

	return SuccessOutcome(artifact.Name, artifact.URL)
}

// templateFailure maps a template build error to the fatal template outcome.
func templateFailure(err error) *Outcome {
	return FailedOutcome(CodeTemplateError, err.Error())
}

// artifactName builds the blob name: prefix, current date, event id, role
// suffix.
func artifactName(prefix, eventID, suffix string) string {
	return fmt.Sprintf("%s-%s-%s-%s", prefix, time.Now().Format("060102"), eventID, suffix)
}
