package ledger

// bookingLogABI is the minimal interface of the booking log contract.
const bookingLogABI = `[
	{"type":"function","name":"logBooking","stateMutability":"nonpayable",
	 "inputs":[{"name":"bookingId","type":"string"},{"name":"contentAddress","type":"string"},{"name":"amount","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"logRating","stateMutability":"nonpayable",
	 "inputs":[{"name":"bookingId","type":"string"},{"name":"rating","type":"uint8"},{"name":"reviewAddress","type":"string"}],
	 "outputs":[]},
	{"type":"function","name":"getBooking","stateMutability":"view",
	 "inputs":[{"name":"bookingId","type":"string"}],
	 "outputs":[{"name":"contentAddress","type":"string"},{"name":"amount","type":"uint256"},{"name":"exists","type":"bool"}]}
]`

const (
	methodLogBooking = "logBooking"
	methodLogRating  = "logRating"
	methodGetBooking = "getBooking"
)
