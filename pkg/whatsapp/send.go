package whatsapp

import (
	"context"
	mathrand "math/rand/v2"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"

	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/validation"
)

// SendResult reports the outcome for one destination of a batch.
type SendResult struct {
	Target    string `json:"target"`
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchResult aggregates per-target outcomes in input order.
type BatchResult struct {
	Results      []SendResult `json:"results"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
}

// GroupTarget is the resolved destination of a group send: either a true
// network-level group identifier or the stored membership list.
type GroupTarget struct {
	NetworkJID string
	Members    []string
}

// SendText sends one text message to one contact. The destination must be a
// registered user on the network; lookup and send failures are surfaced to
// the caller, never retried.
func (m *Manager) SendText(ctx context.Context, sessionID string, phone string, text string) (string, error) {
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		return "", wrapOpError(KindValidation, "invalid phone number", err)
	}
	trimmed, err := validation.ValidateMessage(text)
	if err != nil {
		return "", wrapOpError(KindValidation, "invalid message", err)
	}

	client, err := m.checkedClient(ctx, sessionID)
	if err != nil {
		return "", err
	}

	registered, err := client.IsRegisteredUser(ctx, normalized)
	if err != nil {
		return "", m.classifySendError("destination lookup failed", err)
	}
	if !registered {
		return "", newOpError(KindNotFound, normalized+" is not registered")
	}

	messageID, err := client.SendMessage(ctx, normalized, trimmed)
	if err != nil {
		return "", m.classifySendError("send failed", err)
	}
	return messageID, nil
}

// SendBulk sends one message to many contacts, strictly sequentially, with
// a randomized pause before every send except the first. One target's
// failure never aborts the batch; a fatal connection error does, because
// the remaining sends would certainly fail too and worsen any rate-limit
// condition. Results preserve input order.
func (m *Manager) SendBulk(ctx context.Context, sessionID string, targets []string, text string) (*BatchResult, error) {
	trimmed, err := validation.ValidateMessage(text)
	if err != nil {
		return nil, wrapOpError(KindValidation, "invalid message", err)
	}

	client, err := m.checkedClient(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{Results: make([]SendResult, 0, len(targets))}
	for i, target := range targets {
		if i > 0 {
			m.sleepBetweenSends(ctx)
		}
		result, fatal := m.sendOne(ctx, client, target, trimmed)
		batch.add(result)
		if fatal {
			log.SessionOp(sessionID, "SendBulk").Warn("Fatal connection error; aborting remaining sends")
			break
		}
	}
	return batch, nil
}

// SendGroupMessage delivers a message to a group: directly when the group
// exists at the network level, otherwise individually to each stored member
// under the same delay and short-circuit discipline as a bulk send.
func (m *Manager) SendGroupMessage(ctx context.Context, sessionID string, target GroupTarget, text string) (*BatchResult, error) {
	trimmed, err := validation.ValidateMessage(text)
	if err != nil {
		return nil, wrapOpError(KindValidation, "invalid message", err)
	}

	client, err := m.checkedClient(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{}
	if target.NetworkJID != "" {
		messageID, err := client.SendMessage(ctx, target.NetworkJID, trimmed)
		if err != nil {
			batch.add(SendResult{Target: target.NetworkJID, Error: err.Error()})
			return batch, nil
		}
		batch.add(SendResult{Target: target.NetworkJID, Success: true, MessageID: messageID})
		return batch, nil
	}

	batch.Results = make([]SendResult, 0, len(target.Members))
	for i, member := range target.Members {
		if i > 0 {
			m.sleepBetweenSends(ctx)
		}
		result, fatal := m.sendOne(ctx, client, member, trimmed)
		batch.add(result)
		if fatal {
			log.SessionOp(sessionID, "SendGroup").Warn("Fatal connection error; aborting remaining sends")
			break
		}
	}
	return batch, nil
}

// SendImage sends an image with an optional caption to one contact.
func (m *Manager) SendImage(ctx context.Context, sessionID string, phone string, data []byte, mimeType string, caption string) (string, error) {
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		return "", wrapOpError(KindValidation, "invalid phone number", err)
	}
	client, err := m.checkedClient(ctx, sessionID)
	if err != nil {
		return "", err
	}
	messageID, err := client.SendImage(ctx, normalized, data, mimeType, caption)
	if err != nil {
		return "", m.classifySendError("image send failed", err)
	}
	return messageID, nil
}

// SendDocument sends a file attachment to one contact.
func (m *Manager) SendDocument(ctx context.Context, sessionID string, phone string, data []byte, mimeType string, filename string) (string, error) {
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		return "", wrapOpError(KindValidation, "invalid phone number", err)
	}
	client, err := m.checkedClient(ctx, sessionID)
	if err != nil {
		return "", err
	}
	messageID, err := client.SendDocument(ctx, normalized, data, mimeType, filename)
	if err != nil {
		return "", m.classifySendError("document send failed", err)
	}
	return messageID, nil
}

// SendReaction reacts to a previously sent message with a single emoji.
func (m *Manager) SendReaction(ctx context.Context, sessionID string, phone string, messageID string, emoji string) error {
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		return wrapOpError(KindValidation, "invalid phone number", err)
	}
	if !gomoji.ContainsEmoji(emoji) && uniseg.GraphemeClusterCount(emoji) != 1 {
		return newOpError(KindValidation, "reaction must contain exactly one emoji character")
	}
	client, err := m.checkedClient(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := client.SendReaction(ctx, normalized, messageID, emoji); err != nil {
		return m.classifySendError("reaction send failed", err)
	}
	return nil
}

// sendOne normalizes, looks up, and sends to one target, reporting whether
// the failure is a fatal connection error that should abort the batch.
func (m *Manager) sendOne(ctx context.Context, client ChatClient, target string, text string) (SendResult, bool) {
	normalized, err := validation.NormalizePhone(target)
	if err != nil {
		return SendResult{Target: target, Error: err.Error()}, false
	}

	registered, err := client.IsRegisteredUser(ctx, normalized)
	if err != nil {
		return SendResult{Target: normalized, Error: err.Error()}, IsFatalConnectionError(err)
	}
	if !registered {
		return SendResult{Target: normalized, Error: "not registered"}, false
	}

	messageID, err := client.SendMessage(ctx, normalized, text)
	if err != nil {
		return SendResult{Target: normalized, Error: err.Error()}, IsFatalConnectionError(err)
	}
	return SendResult{Target: normalized, Success: true, MessageID: messageID}, false
}

// checkedClient resolves a usable handle, running the short-TTL health
// check first so a dead session fails fast instead of timing out per send.
func (m *Manager) checkedClient(ctx context.Context, sessionID string) (ChatClient, error) {
	client, ok := m.registry.Get(sessionID)
	if !ok {
		return nil, newOpError(KindNotFound, "session not found")
	}
	status := m.health.Check(ctx, sessionID)
	if !status.Healthy {
		if status.Fatal {
			return nil, newOpError(KindFatalConnection, "session connection is gone: "+status.Error)
		}
		return nil, newOpError(KindTransient, "session is not healthy: "+status.Error)
	}
	return client, nil
}

func (m *Manager) classifySendError(message string, err error) error {
	if IsFatalConnectionError(err) {
		return wrapOpError(KindFatalConnection, message, err)
	}
	return wrapOpError(KindTransient, message, err)
}

func (m *Manager) sleepBetweenSends(ctx context.Context) {
	delay := m.cfg.BulkDelayMin
	if spread := m.cfg.BulkDelayMax - m.cfg.BulkDelayMin; spread > 0 {
		delay += mathrand.N(spread + 1)
	}
	m.clock.Sleep(ctx, delay)
}

func (b *BatchResult) add(result SendResult) {
	b.Results = append(b.Results, result)
	if result.Success {
		b.SuccessCount++
	} else {
		b.FailureCount++
	}
}
