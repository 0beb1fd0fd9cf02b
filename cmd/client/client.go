// Command client is a small CLI for submitting, cancelling, and querying
// orders against a running server.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"ledgerbook/internal/common"
	ledgernet "ledgerbook/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the exchange server")
	participant := flag.String("participant", "", "participant id (required)")
	action := flag.String("action", "place", "action to perform: place | cancel | depth | orders | log")

	ticker := flag.String("ticker", "AAPL", "ticker symbol")
	sideFlag := flag.String("side", "bid", "order side: ask | bid")
	typeFlag := flag.String("type", "lmt", "order type: lmt | mkt")
	priceFlag := flag.String("price", "100.00", "limit price (ignored for market orders)")
	qty := flag.Uint64("qty", 10, "order size")

	orderID := flag.Uint64("order-id", 0, "order id to cancel")
	depth := flag.Int("depth", 10, "depth levels to request")

	flag.Parse()

	if *participant == "" {
		fmt.Println("Error: -participant is required")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()

	switch strings.ToLower(*action) {
	case "place":
		orderType, err := common.ParseOrderType(strings.ToLower(*typeFlag))
		if err != nil {
			log.Fatalf("invalid -type: %v", err)
		}
		side, err := common.ParseSide(strings.ToLower(*sideFlag))
		if err != nil {
			log.Fatalf("invalid -side: %v", err)
		}
		price, err := decimal.NewFromString(*priceFlag)
		if err != nil {
			log.Fatalf("invalid -price: %v", err)
		}

		if err := ledgernet.SendNewOrder(conn, *ticker, orderType, side, price, *qty, *participant); err != nil {
			log.Fatalf("failed to place order: %v", err)
		}
		fmt.Printf("-> submitted %s %s order: %s %d @ %s\n", *typeFlag, *sideFlag, *ticker, *qty, *priceFlag)
		readOneReport(conn)

	case "cancel":
		if *orderID == 0 {
			log.Fatal("Error: -order-id is required for cancel")
		}
		if err := ledgernet.SendCancelOrder(conn, *ticker, *orderID); err != nil {
			log.Fatalf("failed to send cancel: %v", err)
		}
		fmt.Printf("-> cancel requested for order %d\n", *orderID)
		readOneReport(conn)

	case "depth":
		if err := ledgernet.SendGetDepth(conn, *ticker, *depth); err != nil {
			log.Fatalf("failed to request depth: %v", err)
		}
		printDepthReport(conn)

	case "orders":
		if err := ledgernet.SendGetParticipantOrders(conn, *ticker, *participant); err != nil {
			log.Fatalf("failed to request participant orders: %v", err)
		}
		printParticipantOrdersReport(conn)

	case "log":
		if err := ledgernet.SendLogBook(conn); err != nil {
			log.Fatalf("failed to send log request: %v", err)
		}
		fmt.Println("-> log request sent")

	default:
		log.Fatalf("unknown action: %s", *action)
	}
}

// printDepthReport reads the server's DepthReport reply off conn and
// renders it as an ask/bid table.
func printDepthReport(conn net.Conn) {
	report, ok := readReport(conn)
	if !ok {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Side", "Price", "Size")
	for _, lvl := range report.AskLevels {
		table.Append("ask", lvl.Price.String(), fmt.Sprintf("%d", lvl.Size))
	}
	for _, lvl := range report.BidLevels {
		table.Append("bid", lvl.Price.String(), fmt.Sprintf("%d", lvl.Size))
	}
	table.Render()
}

// printParticipantOrdersReport reads the server's ParticipantOrdersReport
// reply off conn and renders it as a live-order table.
func printParticipantOrdersReport(conn net.Conn) {
	report, ok := readReport(conn)
	if !ok {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Order ID", "Side", "Price", "Size")
	for _, id := range report.OrderIDs {
		detail := report.OrderDetails[id]
		table.Append(fmt.Sprintf("%d", id), detail.Side.String(), detail.Price.String(), fmt.Sprintf("%d", detail.Size))
	}
	table.Render()
}

func readReport(conn net.Conn) (ledgernet.Report, bool) {
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		if err != io.EOF {
			log.Printf("no report received: %v", err)
		}
		return ledgernet.Report{}, false
	}

	report, err := ledgernet.ParseReport(buf[:n])
	if err != nil {
		log.Printf("could not decode report: %v", err)
		return ledgernet.Report{}, false
	}
	return report, true
}

// readOneReport is used by place/cancel, which only need to know a reply
// arrived, not decode its contents.
func readOneReport(conn net.Conn) {
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		if err != io.EOF {
			log.Printf("no report received: %v", err)
		}
		return
	}
	fmt.Printf("<- %d bytes received\n", n)
}
