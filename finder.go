package schedz

// Queue discipline selectors. All run with the table lock held and only
// consider RUNNABLE slots. findProcess consults them in fixed priority
// order: round-robin, then lottery, then BJF.

// roundRobinFinder picks the queue-1 process that has gone longest without
// the CPU, by last voluntary yield. Ties go to the first slot found.
func (k *Kernel) roundRobinFinder() *Proc {
	now := k.now()
	maxStale := -100000
	var best *Proc

	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state != Runnable || p.level != QueueRoundRobin {
			continue
		}
		if now-p.lastCPUTime > maxStale {
			maxStale = now - p.lastCPUTime
			best = p
		}
	}
	return best
}

// lotteryFinder draws a ticket across the queue-2 processes. A process
// holds the range [limit-n_tickets, limit) of the cumulative sum; zero
// tickets means an empty range and no chance. Returns nil when the pool is
// empty.
func (k *Kernel) lotteryFinder() *Proc {
	var (
		ps     [NPROC]*Proc
		limits [NPROC]int
		n      int
		sum    int
	)
	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state == Runnable && p.level == QueueLottery {
			ps[n] = p
			sum += p.tickets
			limits[n] = sum
			n++
		}
	}

	rnum := random(sum)
	for j := 0; j < n; j++ {
		if rnum < limits[j] {
			return ps[j]
		}
	}
	return nil
}

// bjfFinder recomputes and caches each queue-3 process's rank, returning
// the slot with the numerically smallest one. Lower rank runs first. Ties
// go to the first slot found; nil when queue 3 is empty.
func (k *Kernel) bjfFinder() *Proc {
	bestRank := bjfInfinity
	var best *Proc

	for i := range k.ptable.proc {
		p := &k.ptable.proc[i]
		if p.state != Runnable || p.level != QueueBJF {
			continue
		}
		p.rank = p.pRatio*3 + p.tRatio*p.arrivalTime + p.cRatio*p.cycles
		if p.rank < bestRank {
			bestRank = p.rank
			best = p
		}
	}
	return best
}

// findProcess returns the process the scheduler should run next, or nil
// when no discipline produces a winner.
func (k *Kernel) findProcess() *Proc {
	if p := k.roundRobinFinder(); p != nil {
		return p
	}
	if p := k.lotteryFinder(); p != nil {
		return p
	}
	return k.bjfFinder()
}
