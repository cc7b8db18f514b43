package coordinator

import (
	"fmt"

	"github.com/gopreparse/preparser/internal/worker"
)

func errNoWorker(d worker.Domain) error {
	return fmt.Errorf("coordinator: no worker registered for domain %s", d)
}
