// Package tribelog decodes and classifies the log strings embedded in a
// game server's binary tribe file.
//
// Quick start:
//
//	buf, _ := os.ReadFile("1234567.arktribe")
//	tl, err := tribelog.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, ev := range tl.Events(buf) {
//	    fmt.Println(ev.Category, ev.Text)
//	}
//
// A Tribelog is safe for concurrent use. It holds no dedup state; that is
// the monitor's job.
package tribelog
