package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jun/gophnote/internal/logging"
	"github.com/jun/gophnote/internal/sandbox"
)

func main() {
	log := logging.Named("sandbox")
	svc := sandbox.New(log)
	if u := os.Getenv("SANDBOX_BASE_URL"); u != "" {
		svc.SetBaseURL(u)
	}
	a := svc.AddUser(envOr("SANDBOX_USER", "sandbox"))
	log.Infof("seeded user with note store %s", a.NoteStoreURL())

	lambda.Start(svc.HandleRequest)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
