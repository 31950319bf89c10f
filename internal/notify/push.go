package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/mgriffe/keepsake/internal/model"
)

// ErrSubscriptionExpired is returned when a push subscription is no longer
// valid (410 Gone). Callers should prune the subscription.
var ErrSubscriptionExpired = errors.New("push subscription expired")

// PushPayload is the JSON sent to the browser push service.
type PushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// PushService delivers owner-facing notifications over VAPID web push.
type PushService struct {
	publicKey  string
	privateKey string
	subscriber string
}

func NewPushService(publicKey, privateKey, subscriber string) *PushService {
	return &PushService{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
	}
}

// VAPIDPublicKey returns the public key for client-side subscription.
func (s *PushService) VAPIDPublicKey() string {
	return s.publicKey
}

// Send pushes a payload to one subscription.
func (s *PushService) Send(sub *model.PushSubscription, payload PushPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrSubscriptionExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}
