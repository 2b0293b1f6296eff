package capture

import "time"

// zeroTime clears a previously-set read deadline on a net.Conn.
var zeroTime time.Time
