package robot

import "context"

// Response is handed to listeners and answers in the originating conversation.
type Response struct {
	robot    *Robot
	Envelope Envelope
	Message  Message
	Match    []string
}

// Send posts texts to the originating conversation.
func (res *Response) Send(ctx context.Context, texts ...string) error {
	return res.robot.Send(ctx, res.Envelope, texts...)
}

// Reply posts texts addressed to the sender.
func (res *Response) Reply(ctx context.Context, texts ...string) error {
	return res.robot.Reply(ctx, res.Envelope, texts...)
}

// Topic sets the topic of the originating conversation.
func (res *Response) Topic(ctx context.Context, lines ...string) error {
	return res.robot.SetTopic(ctx, res.Envelope, lines...)
}

// Robot returns the robot that dispatched the message.
func (res *Response) Robot() *Robot { return res.robot }
