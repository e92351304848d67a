package callclient

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MediaSource supplies local media tracks. Implementations own track
// lifecycle; the endpoint only attaches them to the peer connection.
type MediaSource interface {
	AudioTrack() (webrtc.TrackLocal, error)
	VideoTrack() (webrtc.TrackLocal, error)
	// ScreenTrack captures the display; requested lazily when screen
	// sharing starts
	ScreenTrack() (webrtc.TrackLocal, error)
}

// Peer abstracts the WebRTC peer connection so the endpoint state machine
// can be exercised without real ICE agents.
type Peer interface {
	AddTrack(track webrtc.TrackLocal) error
	// CreateOffer produces the local SDP offer, in the browser JSON shape
	CreateOffer() (json.RawMessage, error)
	// AcceptOffer applies a remote offer and produces the answer
	AcceptOffer(offer json.RawMessage) (json.RawMessage, error)
	// AcceptAnswer applies the remote answer to a sent offer
	AcceptAnswer(answer json.RawMessage) error
	AddRemoteCandidate(candidate json.RawMessage) error
	// OnLocalCandidate registers the trickle callback; must be set before
	// offer/answer work begins
	OnLocalCandidate(fn func(candidate json.RawMessage))
	// ReplaceVideoTrack swaps the outgoing video track without
	// renegotiation. Requires a video track added earlier.
	ReplaceVideoTrack(track webrtc.TrackLocal) error
	Close() error
}

// PeerFactory builds a fresh Peer for each call attempt
type PeerFactory func() (Peer, error)

// pionPeer is the production Peer backed by pion/webrtc
type pionPeer struct {
	pc          *webrtc.PeerConnection
	videoSender *webrtc.RTPSender
}

// NewPionPeer creates a peer connection with the given STUN/TURN servers.
// Pass it to NewEndpoint via a PeerFactory closure.
func NewPionPeer(iceServers []webrtc.ICEServer) (Peer, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return &pionPeer{pc: pc}, nil
}

func (p *pionPeer) AddTrack(track webrtc.TrackLocal) error {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		p.videoSender = sender
	}
	// Drain RTCP so interceptors keep running
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (p *pionPeer) CreateOffer() (json.RawMessage, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(offer)
}

func (p *pionPeer) AcceptOffer(raw json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return nil, fmt.Errorf("decode offer: %w", err)
	}
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	return json.Marshal(answer)
}

func (p *pionPeer) AcceptAnswer(raw json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (p *pionPeer) AddRemoteCandidate(raw json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	if err := p.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

func (p *pionPeer) OnLocalCandidate(fn func(json.RawMessage)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // end of gathering
		}
		raw, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		fn(raw)
	})
}

func (p *pionPeer) ReplaceVideoTrack(track webrtc.TrackLocal) error {
	if p.videoSender == nil {
		return fmt.Errorf("no video sender to replace")
	}
	if err := p.videoSender.ReplaceTrack(track); err != nil {
		return fmt.Errorf("replace video track: %w", err)
	}
	return nil
}

func (p *pionPeer) Close() error {
	return p.pc.Close()
}
