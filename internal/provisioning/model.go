package provisioning

import "time"

// RemoteStatus is the access status stored on the panel.
type RemoteStatus string

const (
	StatusActive   RemoteStatus = "ACTIVE"
	StatusDisabled RemoteStatus = "DISABLED"
)

type createUserRequest struct {
	Username             string       `json:"username"`
	TelegramID           int64        `json:"telegramId"`
	Status               RemoteStatus `json:"status"`
	ExpireAt             time.Time    `json:"expireAt"`
	TrafficLimitBytes    int64        `json:"trafficLimitBytes"`
	TrafficLimitStrategy string       `json:"trafficLimitStrategy"`
	HwidDeviceLimit      int          `json:"hwidDeviceLimit"`
	ActiveInternalSquads []string     `json:"activeInternalSquads,omitempty"`
	Tag                  string       `json:"tag,omitempty"`
}

type updateUserRequest struct {
	UUID                 string       `json:"uuid"`
	Status               RemoteStatus `json:"status,omitempty"`
	ExpireAt             *time.Time   `json:"expireAt,omitempty"`
	TrafficLimitBytes    *int64       `json:"trafficLimitBytes,omitempty"`
	HwidDeviceLimit      *int         `json:"hwidDeviceLimit,omitempty"`
	ActiveInternalSquads []string     `json:"activeInternalSquads,omitempty"`
	Tag                  string       `json:"tag,omitempty"`
}

type userResponse struct {
	Response struct {
		UUID            string `json:"uuid"`
		Username        string `json:"username"`
		SubscriptionURL string `json:"subscriptionUrl"`
	} `json:"response"`
}
