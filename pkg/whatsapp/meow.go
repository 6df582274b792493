package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	qrCode "github.com/skip2/go-qrcode"
	"github.com/sunshineplan/imgconv"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
)

// NewMeowFactory builds the production ClientFactory backed by whatsmeow.
// The sqlstore container is the durable authentication material; routing
// maps session ids to the network identity each session paired as, so a
// recovered or restarted session resumes without a new QR scan.
func NewMeowFactory(container *sqlstore.Container, routing DeviceRouting, proxyURL string) ClientFactory {
	return func(ctx context.Context, sessionID string, sink EventSink) (ChatClient, error) {
		var device *wstore.Device
		if jid, err := routing.GetJID(ctx, sessionID); err == nil && jid != "" {
			if parsed, perr := types.ParseJID(jid); perr == nil {
				device, _ = container.GetDevice(ctx, parsed)
			}
		}
		if device == nil {
			device = container.NewDevice()
		}

		wa := whatsmeow.NewClient(device, nil)
		if proxyURL != "" {
			wa.SetProxyAddress(proxyURL)
		}
		wa.EnableAutoReconnect = true
		wa.AutoTrustIdentity = true

		client := &meowClient{
			sessionID: sessionID,
			wa:        wa,
			sink:      sink,
			routing:   routing,
		}
		wa.AddEventHandler(client.handleEvent)
		return client, nil
	}
}

type meowClient struct {
	sessionID string
	wa        *whatsmeow.Client
	sink      EventSink
	routing   DeviceRouting
}

func (c *meowClient) Initialize(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		// No durable credentials: run the QR pairing flow. Codes reach
		// the dashboard through the event sink as they rotate.
		qrChan, err := c.wa.GetQRChannel(ctx)
		if err != nil {
			return err
		}
		if err := c.wa.Connect(); err != nil {
			return err
		}
		go c.watchQR(qrChan)
		return nil
	}
	return c.wa.Connect()
}

func (c *meowClient) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			png, err := qrCode.Encode(evt.Code, qrCode.Medium, 256)
			if err != nil {
				c.sink(c.sessionID, EventFailure{Err: err})
				continue
			}
			c.sink(c.sessionID, EventQR{Code: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)})
		case whatsmeow.QRChannelSuccess.Event:
			c.sink(c.sessionID, EventAuthenticated{})
		case whatsmeow.QRChannelTimeout.Event:
			c.sink(c.sessionID, EventFailure{Err: errors.New("qr channel timed out before a scan")})
		case "error":
			if evt.Error != nil {
				c.sink(c.sessionID, EventFailure{Err: evt.Error})
			}
		}
	}
}

func (c *meowClient) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		if c.wa.Store.ID != nil {
			_ = c.routing.SaveJID(context.Background(), c.sessionID, c.wa.Store.ID.String())
		}
		c.sink(c.sessionID, EventReady{
			PhoneNumber: c.storedPhone(),
			DisplayName: c.wa.Store.PushName,
		})
	case *events.PairSuccess:
		c.sink(c.sessionID, EventAuthenticated{})
	case *events.Disconnected:
		c.sink(c.sessionID, EventDisconnected{Reason: "stream disconnected"})
	case *events.StreamReplaced:
		c.sink(c.sessionID, EventDisconnected{Reason: "stream replaced"})
	case *events.LoggedOut:
		_ = c.routing.DeleteJID(context.Background(), c.sessionID)
		c.sink(c.sessionID, EventAuthFailed{Reason: fmt.Sprintf("logged out by server: %v", e.Reason)})
	case *events.ConnectFailure:
		c.sink(c.sessionID, EventFailure{Err: fmt.Errorf("connect failure: %s (%s)", e.Reason, e.Message)})
	case *events.TemporaryBan:
		c.sink(c.sessionID, EventFailure{Err: fmt.Errorf("temporarily banned: %s until %s", e.Code, e.Expire)})
	case *events.KeepAliveTimeout:
		log.SessionOp(c.sessionID, "KeepAlive").WithField("error_count", e.ErrorCount).Warn("Client keepalive timeout")
	}
}

func (c *meowClient) storedPhone() string {
	if c.wa.Store.ID == nil {
		return ""
	}
	return c.wa.Store.ID.User
}

func (c *meowClient) GetState(ctx context.Context) (string, error) {
	if !c.wa.IsConnected() {
		return "disconnected", nil
	}
	if !c.wa.IsLoggedIn() {
		return "unauthenticated", nil
	}
	return StateConnected, nil
}

func (c *meowClient) SendMessage(ctx context.Context, destination string, text string) (string, error) {
	remoteJID, err := c.resolveJID(ctx, destination)
	if err != nil {
		return "", err
	}
	msgExtra := whatsmeow.SendRequestExtra{ID: c.wa.GenerateMessageID()}
	msgContent := &waE2E.Message{
		Conversation: proto.String(text),
	}
	if _, err := c.wa.SendMessage(ctx, remoteJID, msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

func (c *meowClient) SendImage(ctx context.Context, destination string, data []byte, mimeType string, caption string) (string, error) {
	remoteJID, err := c.resolveJID(ctx, destination)
	if err != nil {
		return "", err
	}

	thumbDecode, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errors.New("failed to decode image stream")
	}
	thumbEncode := new(bytes.Buffer)
	err = imgconv.Write(thumbEncode,
		imgconv.Resize(thumbDecode, &imgconv.ResizeOption{Width: 72}),
		&imgconv.FormatOption{Format: imgconv.JPEG})
	if err != nil {
		return "", errors.New("failed to encode image thumbnail")
	}

	imageUploaded, err := c.wa.Upload(ctx, data, whatsmeow.MediaImage)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: c.wa.GenerateMessageID()}
	msgContent := &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(imageUploaded.URL),
			DirectPath:    proto.String(imageUploaded.DirectPath),
			Mimetype:      proto.String(mimeType),
			Caption:       proto.String(caption),
			FileLength:    proto.Uint64(imageUploaded.FileLength),
			FileSHA256:    imageUploaded.FileSHA256,
			FileEncSHA256: imageUploaded.FileEncSHA256,
			MediaKey:      imageUploaded.MediaKey,
			JPEGThumbnail: thumbEncode.Bytes(),
		},
	}
	if _, err := c.wa.SendMessage(ctx, remoteJID, msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

func (c *meowClient) SendDocument(ctx context.Context, destination string, data []byte, mimeType string, filename string) (string, error) {
	remoteJID, err := c.resolveJID(ctx, destination)
	if err != nil {
		return "", err
	}
	documentUploaded, err := c.wa.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}
	msgExtra := whatsmeow.SendRequestExtra{ID: c.wa.GenerateMessageID()}
	msgContent := &waE2E.Message{
		DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(documentUploaded.URL),
			DirectPath:    proto.String(documentUploaded.DirectPath),
			Mimetype:      proto.String(mimeType),
			FileName:      proto.String(filename),
			FileLength:    proto.Uint64(documentUploaded.FileLength),
			FileSHA256:    documentUploaded.FileSHA256,
			FileEncSHA256: documentUploaded.FileEncSHA256,
			MediaKey:      documentUploaded.MediaKey,
		},
	}
	if _, err := c.wa.SendMessage(ctx, remoteJID, msgContent, msgExtra); err != nil {
		return "", err
	}
	return msgExtra.ID, nil
}

func (c *meowClient) SendReaction(ctx context.Context, destination string, messageID string, emoji string) error {
	remoteJID, err := c.resolveJID(ctx, destination)
	if err != nil {
		return err
	}
	msgReact := &waE2E.Message{
		ReactionMessage: &waE2E.ReactionMessage{
			Key: &waCommon.MessageKey{
				FromMe:    proto.Bool(true),
				ID:        proto.String(messageID),
				RemoteJID: proto.String(remoteJID.String()),
			},
			Text:              proto.String(emoji),
			SenderTimestampMS: proto.Int64(time.Now().UnixMilli()),
		},
	}
	_, err = c.wa.SendMessage(ctx, remoteJID, msgReact)
	return err
}

func (c *meowClient) IsRegisteredUser(ctx context.Context, phone string) (bool, error) {
	infos, err := c.wa.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return false, err
	}
	if len(infos) == 0 {
		return false, nil
	}
	return infos[0].IsIn, nil
}

func (c *meowClient) CreateGroup(ctx context.Context, name string, members []string) (string, error) {
	req := whatsmeow.ReqCreateGroup{Name: name}
	if len(members) > 0 {
		participants := make([]types.JID, 0, len(members))
		for _, member := range members {
			jid, err := c.resolveJID(ctx, member)
			if err != nil {
				return "", err
			}
			if jid.Server == types.GroupServer {
				return "", errors.New("group participant must be a personal identity")
			}
			participants = append(participants, jid)
		}
		req.Participants = participants
	}
	group, err := c.wa.CreateGroup(ctx, req)
	if err != nil {
		return "", err
	}
	return group.JID.String(), nil
}

func (c *meowClient) GetChats(ctx context.Context) ([]Chat, error) {
	groups, err := c.wa.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}
	chats := make([]Chat, 0, len(groups))
	for _, group := range groups {
		chats = append(chats, Chat{ID: group.JID.String(), Name: group.Name, IsGroup: true})
	}
	return chats, nil
}

func (c *meowClient) Destroy() {
	c.wa.Disconnect()
}

func (c *meowClient) Logout(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		c.wa.Disconnect()
		return nil
	}
	if err := c.wa.Logout(ctx); err != nil {
		// Server-side logout failed; clear local credentials so the
		// identity cannot be half-resumed.
		c.wa.Disconnect()
		if storeErr := c.wa.Store.Delete(ctx); storeErr != nil {
			return storeErr
		}
	}
	return c.routing.DeleteJID(ctx, c.sessionID)
}

// resolveJID maps a destination to a network identity. Digit strings become
// user identities after an on-network registration lookup; anything already
// carrying a server part is parsed as-is (group sends pass the stored
// network identifier through here).
func (c *meowClient) resolveJID(ctx context.Context, destination string) (types.JID, error) {
	if strings.ContainsRune(destination, '@') {
		parsed, err := types.ParseJID(destination)
		if err != nil {
			return types.EmptyJID, err
		}
		return parsed, nil
	}
	infos, err := c.wa.IsOnWhatsApp(ctx, []string{"+" + destination})
	if err != nil {
		return types.EmptyJID, err
	}
	if len(infos) == 0 || !infos[0].IsIn {
		return types.EmptyJID, errors.New(destination + " is not registered")
	}
	return infos[0].JID, nil
}
