package main

import (
	"errors"
	"fmt"

	"github.com/Seednode/partyclient/protocol"
	"github.com/Seednode/partyclient/session"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrOffline       = errors.New("not connected")
)

// actionRequest is the body accepted by POST /actions/:action. Each
// action reads only the fields it needs.
type actionRequest struct {
	Content  string            `json:"content,omitempty"`
	Key      string            `json:"key,omitempty"`
	Target   string            `json:"target,omitempty"`
	Frame    string            `json:"frame,omitempty"`
	Room     string            `json:"room,omitempty"`
	Settings protocol.Settings `json:"settings"`
}

// Do performs a user action. Messages go through the bus queue, so an
// action taken while disconnected is sent after the next connect.
func (c *Client) Do(action string, req actionRequest) error {
	switch action {
	case "join":
		return c.join(req.Room)
	case "start":
		return c.bus.Post(protocol.StartGame())
	case "submit":
		if err := c.bus.Post(protocol.Submit(req.Content)); err != nil {
			return err
		}
		c.store.Dispatch(session.LocalSubmitted{})
		return nil
	case "settings":
		return c.bus.Post(protocol.UpdateSettings(req.Settings))
	case "skip":
		return c.bus.Post(protocol.SkipIntermission())
	case "keydown":
		return c.keys.Down(req.Key)
	case "keyup":
		return c.keys.Up(req.Key)
	case "release":
		return c.keys.ReleaseAll()
	case "coffee-invite":
		if req.Target == "" {
			return errors.New("coffee-invite needs a target")
		}
		return c.bus.Post(protocol.CoffeeInviteTo(req.Target))
	case "coffee-accept":
		target := req.Target
		if target == "" {
			if inv := c.store.Snapshot().Coffee.Invite; inv != nil {
				target = inv.SenderID
			}
		}
		if target == "" {
			return errors.New("no pending invite to accept")
		}
		return c.bus.Post(protocol.CoffeeAccept(target))
	case "coffee-leave":
		target := req.Target
		if target == "" {
			target = c.voice.Partner()
		}
		if target == "" {
			return errors.New("not in a private chat")
		}
		return c.bus.Post(protocol.CoffeeLeave(target))
	case "video":
		if !c.bus.TrySend(protocol.Video(req.Frame)) {
			return ErrOffline
		}
		return nil
	case "reset":
		return c.reset()
	}

	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// reset returns to the entry screen: the store is emptied, which stops
// the frame loop, held keys are released and the audio context is
// replaced.
func (c *Client) reset() error {
	keyErr := c.keys.ReleaseAll()

	c.store.Dispatch(session.Reset{})

	if err := c.voice.Teardown(); err != nil {
		return errors.Join(keyErr, err)
	}
	c.voice.ForgetIdentity()
	c.voice.Start()

	return keyErr
}
