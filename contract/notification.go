package contract

import "encoding/json"

// NotificationResponse is the tapped-notification record handed over by the OS tray:
// {notification:{request:{content:{data:{screen, params}}}}}.
type NotificationResponse struct {
	Notification struct {
		Request struct {
			Content NotificationContent `json:"content"`
		} `json:"request"`
	} `json:"notification"`
}

type NotificationContent struct {
	Title string           `json:"title,omitempty"`
	Body  string           `json:"body,omitempty"`
	Data  NotificationData `json:"data"`
}

// NotificationData carries the navigation instruction. Params is kept raw: FCM data
// maps are string valued, so it may arrive as an object or as a JSON encoded string.
type NotificationData struct {
	Screen string          `json:"screen"`
	Params json.RawMessage `json:"params,omitempty"`
}
