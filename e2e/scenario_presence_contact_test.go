package e2e

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type testPresenceContactSuite struct {
	BaseWsSuite
}

func TestPresenceContactSuite(t *testing.T) {
	suite.Run(t, &testPresenceContactSuite{})
}

type presence struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

func (s *testPresenceContactSuite) TestPresenceAndFriendship() {
	alice := s.Dial("Alice", "e2e-alice-"+uuid.NewString())
	bob := s.Dial("Bob", "e2e-bob-"+uuid.NewString())

	s.Run("Step 1: Snapshot lists peers already online", func() {
		alice.Online()
		online := bob.Online()
		s.Require().Contains(online, alice.UserID)
		s.Require().NotContains(online, bob.UserID)
	})

	s.Run("Step 2: Friend request is forwarded", func() {
		alice.Emit("friend:request", map[string]string{"toUser": bob.UserID})
		var request struct {
			FromUser string `json:"fromUser"`
			ToUser   string `json:"toUser"`
		}
		bob.Expect("friend:request", &request)
		s.Require().Equal(alice.UserID, request.FromUser)
		s.Require().Equal(bob.UserID, request.ToUser)
	})

	s.Run("Step 3: Acceptance reaches the requester", func() {
		bob.Emit("friend:response", map[string]string{"requesterId": alice.UserID, "action": "accept"})
		var response struct {
			ResponderID string `json:"responderId"`
			Action      string `json:"action"`
		}
		alice.Expect("friend:response", &response)
		s.Require().Equal(bob.UserID, response.ResponderID)
		s.Require().Equal("accept", response.Action)
	})

	s.Run("Step 4: Message to an unknown conversation is refused", func() {
		alice.Emit("message:send", map[string]string{"conversationId": "e2e-missing-" + uuid.NewString(), "content": "hello"})
		var rejected struct {
			Code string `json:"code"`
		}
		alice.Expect("error", &rejected)
		s.Require().Equal("not_found", rejected.Code)
	})

	s.Run("Step 5: Disconnect broadcasts offline", func() {
		s.Require().NoError(bob.conn.Close())
		for {
			var p presence
			alice.Expect("user:presence", &p)
			if p.UserID == bob.UserID && p.Status == "offline" {
				return
			}
		}
	})
}
