// Command schedz boots the simulated kernel and runs the dining
// philosophers on its semaphore layer, then dumps the process table.
package main

import (
	"fmt"
	"time"

	"github.com/zoobzio/schedz"
)

const (
	philosophers = 5
	meals        = 3
	roomSem      = 5 // chopsticks occupy semaphores 0..4
)

func philosopher(n int, plate int) schedz.ProcFunc {
	left := n
	right := (n + 1) % philosophers
	return func(k *schedz.Kernel, self *schedz.Proc) {
		for meal := 0; meal < meals; meal++ {
			k.SemAcquire(self, roomSem)
			k.SemAcquire(self, left)
			k.SemAcquire(self, right)

			fmt.Printf("philosopher %d eats meal %d (largest prime factor of %d is %d)\n",
				n, meal+1, plate, schedz.LargestPrimeFactor(plate))
			k.Yield(self)

			k.SemRelease(self, right)
			k.SemRelease(self, left)
			k.SemRelease(self, roomSem)
		}
	}
}

func main() {
	done := make(chan struct{})

	k := schedz.New().WithTickInterval(time.Millisecond)
	err := k.Boot(1, func(k *schedz.Kernel, init *schedz.Proc) {
		for i := 0; i < philosophers; i++ {
			k.SemInit(init, i, 1)
		}
		k.SemInit(init, roomSem, philosophers-1)

		for i := 0; i < philosophers; i++ {
			if _, err := k.Fork(init, philosopher(i, 9000+i*1111)); err != nil {
				fmt.Println("fork:", err)
			}
		}
		for i := 0; i < philosophers; i++ {
			k.Wait(init)
		}

		k.PrintProcess(init)
		close(done)
		for {
			k.Park(init)
		}
	})
	if err != nil {
		fmt.Println("boot:", err)
		return
	}

	<-done
	k.Shutdown()
}
