package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// StepReport is the outcome of one pipeline step.
type StepReport struct {
	Etape         string  `json:"etape"`
	Statut        string  `json:"statut"`
	NbLignes      int64   `json:"nb_lignes"`
	DureeSecondes float64 `json:"duree_secondes"`
	Erreur        string  `json:"erreur,omitempty"`
}

// RunReport is the JSON document posted to the notification webhook after
// a pipeline run.
type RunReport struct {
	RunID         string       `json:"run_id"`
	DateExecution time.Time    `json:"date_execution"`
	Statut        string       `json:"statut"`
	DureeSecondes float64      `json:"duree_secondes"`
	Etapes        []StepReport `json:"etapes"`
}

// Notifier posts pipeline run reports. A notifier with no URL configured
// is a no-op; notification failures are logged, never fatal.
type Notifier interface {
	NotifyRun(ctx context.Context, report *RunReport)
}

type webhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

func NewWebhookNotifier(url string, timeout time.Duration, logger *zap.Logger) Notifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	return &webhookNotifier{client: client, url: url, logger: logger}
}

func (n *webhookNotifier) NotifyRun(ctx context.Context, report *RunReport) {
	if n.url == "" {
		return
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(report).
		Post(n.url)
	if err != nil {
		n.logger.Error("failed to post run report",
			zap.String("run_id", report.RunID),
			zap.Error(err))
		return
	}
	if resp.IsError() {
		n.logger.Error("run report rejected by webhook",
			zap.String("run_id", report.RunID),
			zap.Int("status", resp.StatusCode()),
			zap.String("body", resp.String()))
		return
	}
	n.logger.Info("run report delivered",
		zap.String("run_id", report.RunID),
		zap.String("statut", report.Statut))
}

// NopNotifier discards reports; used when no webhook is configured and in
// tests.
type NopNotifier struct{}

func (NopNotifier) NotifyRun(context.Context, *RunReport) {}

var _ Notifier = (*webhookNotifier)(nil)
var _ Notifier = NopNotifier{}

// Summary renders the report as a one-line string for the CLI exit
// message.
func (r *RunReport) Summary() string {
	ok, ko := 0, 0
	for _, e := range r.Etapes {
		if e.Erreur == "" {
			ok++
		} else {
			ko++
		}
	}
	return fmt.Sprintf("run %s: %s, %d étapes réussies, %d en échec, %.1fs",
		r.RunID, r.Statut, ok, ko, r.DureeSecondes)
}
