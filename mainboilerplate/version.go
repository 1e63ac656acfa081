package mainboilerplate

// Version and BuildDate are stamped at build time via -ldflags, eg:
//
//	go build -ldflags "-X github.com/flightaware/turtles/mainboilerplate.Version=$(git describe)"
var (
	Version   = "dev"
	BuildDate = "unknown"
)
