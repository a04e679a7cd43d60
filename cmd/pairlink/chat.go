package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pairlink/pairlink"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func iceServers() []webrtc.ICEServer {
	urls := viper.GetStringSlice("stun")
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: urls}}
}

// runChat drives a whole text session from the terminal. The human is
// the signaling transport: the local code is printed for copying out,
// the peer's code is pasted in.
func runChat(role pairlink.Role) {
	logger := newLogger()

	ctrl := pairlink.NewController(&pairlink.Config{
		Label:      viper.GetString("label"),
		Kind:       pairlink.SessionText,
		ICEServers: iceServers(),
		Logger:     logrus.NewEntry(logger),
	})
	defer ctrl.Reset()

	settled := make(chan struct{})
	ctrl.OnStateChange(func(s pairlink.State) {
		if s == pairlink.StateFailed {
			logger.WithError(ctrl.LastError()).Error("connection failed, restart with a new code")
		}
		if s == pairlink.StateConnected || s == pairlink.StateFailed {
			select {
			case <-settled:
			default:
				close(settled)
			}
		}
	})
	ctrl.OnLocalDescriptor(func(code string) {
		fmt.Println("\nYour connection code (send it to your peer):")
		fmt.Printf("\n%s\n\n", code)
	})
	ctrl.OnMessage(func(m pairlink.Message) {
		if m.Sender == pairlink.SenderRemote {
			fmt.Printf("peer> %s\n", m.Text)
		}
	})

	ctx := context.Background()
	if err := ctrl.Start(ctx, role); err != nil {
		logger.WithError(err).Fatal("could not start session")
	}

	stdin := bufio.NewReader(os.Stdin)
	fmt.Println("Paste the peer's connection code and press enter:")
	for {
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := ctrl.ApplyRemoteDescriptor(ctx, line); err != nil {
			fmt.Println("Invalid code, try again:")
			continue
		}
		break
	}

	<-settled
	if ctrl.State() != pairlink.StateConnected {
		return
	}
	fmt.Println("Connected. Type messages, one per line:")
	for {
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		if ctrl.State() == pairlink.StateFailed {
			return
		}
		ctrl.Send(strings.TrimSpace(line))
	}
}
