package notify

import "fmt"

func httpStatusError(status int, url string) error {
	return fmt.Errorf("received status %d from %s", status, url)
}
