package session

import (
	"context"
	"errors"

	"github.com/mcoot/turnrelay/internal/model"
	"github.com/mcoot/turnrelay/internal/protocol"
)

type route struct {
	needsAuth  bool
	needsMatch bool
	handle     func(s *Session, ctx context.Context, data string) (*protocol.Response, error)
}

// routes has an entry for every protocol.RequestTypes value
var routes = map[protocol.RequestType]route{
	protocol.RequestRegister:            {handle: (*Session).register},
	protocol.RequestLogin:               {handle: (*Session).login},
	protocol.RequestUpdatePairing:       {needsAuth: true, handle: (*Session).updatePairing},
	protocol.RequestSendInvitation:      {needsAuth: true, handle: (*Session).sendInvitation},
	protocol.RequestAcceptInvitation:    {needsAuth: true, handle: (*Session).acceptInvitation},
	protocol.RequestDeclineInvitation:   {needsAuth: true, handle: (*Session).declineInvitation},
	protocol.RequestAcknowledgeResponse: {needsAuth: true, handle: (*Session).acknowledgeResponse},
	protocol.RequestRequestMove:         {needsAuth: true, needsMatch: true, handle: (*Session).requestMove},
	protocol.RequestSendMove:            {needsAuth: true, needsMatch: true, handle: (*Session).sendMove},
	protocol.RequestAbortGame:           {needsAuth: true, needsMatch: true, handle: (*Session).abortGame},
	protocol.RequestCompleteGame:        {needsAuth: true, needsMatch: true, handle: (*Session).completeGame},
}

func (s *Session) register(ctx context.Context, data string) (*protocol.Response, error) {
	creds, err := protocol.DecodeCredentials(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.handler.auth.Register(ctx, creds.Username, creds.Password, creds.DisplayName); err != nil {
		return nil, err
	}
	return protocol.Success(MsgRegistered), nil
}

func (s *Session) login(ctx context.Context, data string) (*protocol.Response, error) {
	if s.username != "" {
		return nil, model.ErrAlreadyLoggedIn
	}
	creds, err := protocol.DecodeCredentials(data)
	if err != nil {
		return nil, err
	}
	user, err := s.handler.auth.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	s.username = user.Username
	return protocol.Success(MsgLoggedIn), nil
}

func (s *Session) updatePairing(ctx context.Context, _ string) (*protocol.Response, error) {
	avail, err := s.handler.pairing.ComputeAvailability(ctx, s.username)
	if err != nil {
		return nil, err
	}
	return protocol.Pairing(MsgPairing, protocol.PairingPayload{
		AvailableUsers:     avail.AvailableUsers,
		Invitation:         avail.Invitation,
		InvitationResponse: avail.InvitationResponse,
	}), nil
}

func (s *Session) sendInvitation(ctx context.Context, data string) (*protocol.Response, error) {
	opponent, err := protocol.DecodeUsername(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.handler.pairing.SendInvitation(ctx, s.username, opponent); err != nil {
		return nil, err
	}
	return protocol.Success(MsgInvitationSent), nil
}

func (s *Session) acceptInvitation(ctx context.Context, data string) (*protocol.Response, error) {
	id, err := protocol.DecodeEventID(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.handler.pairing.AcceptInvitation(ctx, s.username, id); err != nil {
		return nil, err
	}
	s.eventID = id
	return protocol.Success(MsgAccepted), nil
}

func (s *Session) declineInvitation(ctx context.Context, data string) (*protocol.Response, error) {
	id, err := protocol.DecodeEventID(data)
	if err != nil {
		return nil, err
	}
	if _, err := s.handler.pairing.DeclineInvitation(ctx, s.username, id); err != nil {
		return nil, err
	}
	return protocol.Success(MsgDeclined), nil
}

func (s *Session) acknowledgeResponse(ctx context.Context, data string) (*protocol.Response, error) {
	id, err := protocol.DecodeEventID(data)
	if err != nil {
		return nil, err
	}
	event, err := s.handler.pairing.AcknowledgeResponse(ctx, s.username, id)
	if err != nil {
		return nil, err
	}
	if event.Status == model.EventStatusPlaying {
		s.eventID = id
	}
	return protocol.Success(MsgAcknowledged), nil
}

func (s *Session) requestMove(ctx context.Context, _ string) (*protocol.Response, error) {
	result, err := s.handler.match.RequestMove(ctx, s.username, s.eventID)
	if err != nil {
		return nil, s.unbindIfFinished(err)
	}
	if !result.Active {
		s.eventID = 0
		return protocol.Move(result.Message, false, result.Move), nil
	}
	return protocol.Move(MsgMoveRetrieved, true, result.Move), nil
}

func (s *Session) sendMove(ctx context.Context, data string) (*protocol.Response, error) {
	move, err := protocol.DecodeMove(data)
	if err != nil {
		return nil, err
	}
	if err := s.handler.match.SubmitMove(ctx, s.username, s.eventID, move); err != nil {
		return nil, s.unbindIfFinished(err)
	}
	return protocol.Success(MsgMoveSent), nil
}

func (s *Session) abortGame(ctx context.Context, _ string) (*protocol.Response, error) {
	if _, err := s.handler.match.AbortGame(ctx, s.username, s.eventID); err != nil {
		return nil, s.unbindIfFinished(err)
	}
	s.eventID = 0
	return protocol.Success(MsgGameAborted), nil
}

func (s *Session) completeGame(ctx context.Context, _ string) (*protocol.Response, error) {
	if _, err := s.handler.match.CompleteGame(ctx, s.username, s.eventID); err != nil {
		return nil, s.unbindIfFinished(err)
	}
	s.eventID = 0
	return protocol.Success(MsgGameCompleted), nil
}

// unbindIfFinished drops the bound match when the engine reports it unusable
func (s *Session) unbindIfFinished(err error) error {
	if errors.Is(err, model.ErrInvalidState) || errors.Is(err, model.ErrUnauthorized) {
		s.eventID = 0
	}
	return err
}
