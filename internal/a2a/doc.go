// Package a2a implements the client side of the Agent-to-Agent protocol:
// agent card discovery, JSON-RPC message exchange, and the streaming event
// channel built on Server-Sent Events.
//
// # Overview
//
// Remote agents publish a capability card at a well-known URL and accept
// JSON-RPC 2.0 calls on their base endpoint. The package covers the three
// interactions agentline needs:
//   - ResolveCard: fetch and parse the agent's capability card
//   - SendMessage: blocking message/send, returning a single result event
//   - SendMessageStream: message/stream over SSE, returning an EventStream
//
// # Quick Start
//
// Create a client and resolve the agent's card:
//
//	client := a2a.NewClient("http://localhost:4100",
//		a2a.WithHeaders(map[string]string{"Authorization": "Bearer token"}),
//	)
//	card, err := client.ResolveCard(ctx)
//
// Stream a conversation turn:
//
//	stream, err := client.SendMessageStream(ctx, params)
//	if err != nil {
//		return err
//	}
//	defer stream.Close()
//	for {
//		event, err := stream.Recv()
//		if err == io.EOF {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		// event is a *Message, *Task, *StatusUpdate or *ArtifactUpdate
//	}
//
// # Event Model
//
// Every protocol payload carries a "kind" discriminator. DecodeEvent probes
// the discriminator and returns one of the four concrete event types behind
// the sealed Event interface. Payloads with an unrecognized or missing kind
// produce ErrUnknownEventKind; inside a stream such events are logged and
// skipped so one unknown kind does not abort the turn.
//
// # Error Handling
//
// JSON-RPC level failures surface as errors carrying the remote code and
// message; transport failures are wrapped with context. A stream whose
// underlying connection ends cleanly yields io.EOF from Recv.
package a2a
